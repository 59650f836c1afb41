package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hibiki-ai/hibiki/common/crypto"
	"github.com/hibiki-ai/hibiki/common/environment"
	"github.com/hibiki-ai/hibiki/common/version"
	"github.com/hibiki-ai/hibiki/internal/hibiki/app"
	"github.com/hibiki-ai/hibiki/internal/hibiki/matrix"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
)

func main() {
	fmt.Printf("Hibiki Assistant Gateway\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	setupLogging()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hibiki, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Hibiki: %v\n", err)
		os.Exit(1)
	}
	defer hibiki.Stop()

	if err := hibiki.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Hibiki: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads configuration from environment variables.
func loadConfig() (app.Config, error) {
	apiKey, err := environment.RequiredString("OPENAI_API_KEY")
	if err != nil {
		return app.Config{}, err
	}

	var masterKey []byte
	if raw := environment.StringOr("HIBIKI_MASTER_KEY", ""); raw != "" {
		masterKey, err = crypto.ParseMasterKey(raw)
		if err != nil {
			return app.Config{}, fmt.Errorf("HIBIKI_MASTER_KEY: %w", err)
		}
	}

	return app.Config{
		HTTPAddr:       environment.StringOr("HIBIKI_HTTP_ADDR", ":8080"),
		DatabasePath:   environment.StringOr("DATABASE_PATH", "./hibiki.db"),
		MasterKey:      masterKey,
		AuthConnectURL: environment.StringOr("HIBIKI_AUTH_CONNECT_URL", "http://localhost:8080/connect"),
		OpenAI: nlp.Config{
			APIKey:  apiKey,
			BaseURL: environment.StringOr("OPENAI_BASE_URL", ""),
			Model:   environment.StringOr("OPENAI_MODEL", ""),
			Timeout: environment.DurationOr("OPENAI_TIMEOUT", 30*time.Second),
		},
		RateLimit:   environment.IntOr("HIBIKI_RATE_LIMIT", 0),
		TokenBudget: environment.IntOr("HIBIKI_TOKEN_BUDGET", 0),
		Matrix: matrix.Config{
			Homeserver:  environment.StringOr("MATRIX_HOMESERVER", ""),
			UserID:      environment.StringOr("MATRIX_USER_ID", ""),
			AccessToken: environment.StringOr("MATRIX_ACCESS_TOKEN", ""),
		},
		AuditRoomID: environment.StringOr("MATRIX_AUDIT_ROOM", ""),
	}, nil
}

// setupLogging configures slog from LOG_LEVEL and LOG_FORMAT.
func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(environment.StringOr("LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if strings.EqualFold(environment.StringOr("LOG_FORMAT", "text"), "json") {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
