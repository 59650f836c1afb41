// Package app assembles the Hibiki assistant gateway: catalog, model
// provider, agents, pipeline, persistence, and the HTTP front.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiki-ai/hibiki/internal/hibiki/agents"
	"github.com/hibiki-ai/hibiki/internal/hibiki/audit"
	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
	"github.com/hibiki-ai/hibiki/internal/hibiki/gate"
	"github.com/hibiki-ai/hibiki/internal/hibiki/history"
	"github.com/hibiki-ai/hibiki/internal/hibiki/httpapi"
	"github.com/hibiki-ai/hibiki/internal/hibiki/matrix"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/orchestrator"
	"github.com/hibiki-ai/hibiki/internal/hibiki/store"
)

// Config holds application configuration.
type Config struct {
	// HTTPAddr is the TCP address the API server listens on (e.g. ":8080").
	HTTPAddr string

	// DatabasePath is the SQLite file holding the audit log, credentials,
	// and messages. When empty, persistence is disabled and credentials
	// live in memory only.
	DatabasePath string

	// MasterKey, when set, encrypts stored service tokens at rest with
	// AES-256-GCM. Must be 32 bytes.
	MasterKey []byte

	// AuthConnectURL is the base URL users are sent to when a handler
	// family has no stored credential.
	AuthConnectURL string

	// OpenAI configures the model provider backing the router, parsers,
	// and responder.
	OpenAI nlp.Config

	// RateLimit is the maximum pipeline requests per principal per minute.
	// Zero uses nlp.DefaultRateLimit.
	RateLimit int

	// TokenBudget is the maximum model tokens per principal per UTC day.
	// Zero uses nlp.DefaultTokenBudget.
	TokenBudget int

	// Matrix optionally configures the ops-room audit notifier. Notices
	// are disabled when AuditRoomID is empty.
	Matrix      matrix.Config
	AuditRoomID string

	// Connectors back the handler families. A nil connector disables its
	// family: the router may still propose it, and the orchestrator
	// degrades those requests to a simple response.
	Docs  agents.DocsConnector
	Repo  agents.RepoConnector
	Drive agents.DriveConnector
}

// App is the assembled application.
type App struct {
	server *httpapi.Server
	store  *store.Store
}

// New wires the application from cfg.
func New(cfg Config) (*App, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	budget := nlp.NewTokenBudget(cfg.TokenBudget)
	provider := nlp.NewMeteredProvider(nlp.New(cfg.OpenAI), budget)
	parser := nlp.NewParser(provider)

	var (
		db    *store.Store
		creds credentials.Store
		sinks audit.Fanout
		msgs  orchestrator.MessageStore
	)
	if cfg.DatabasePath != "" {
		db, err = store.Open(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		if len(cfg.MasterKey) > 0 {
			creds = db.EncryptedCredentials(cfg.MasterKey)
		} else {
			slog.Warn("no master key configured; service tokens are stored in plaintext")
			creds = db.Credentials()
		}
		sinks = append(sinks, db.Audit())
		msgs = db.Messages()
	} else {
		slog.Warn("no database configured; credentials and audit are in-memory only")
		creds = credentials.NewMemoryStore()
	}

	if cfg.AuditRoomID != "" {
		mx, err := matrix.New(cfg.Matrix)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("app: %w", err)
		}
		sinks = append(sinks, audit.NewMatrixNotifier(mx, cfg.AuditRoomID))
	}

	var as []agents.Agent
	if cfg.Docs != nil {
		fam, _ := cat.Family("docs")
		as = append(as, agents.NewDocsAgent(fam, parser, creds, cfg.AuthConnectURL, cfg.Docs))
	}
	if cfg.Repo != nil {
		fam, _ := cat.Family("repo")
		as = append(as, agents.NewRepoAgent(fam, parser, creds, cfg.AuthConnectURL, cfg.Repo))
	}
	if cfg.Drive != nil {
		fam, _ := cat.Family("drive")
		as = append(as, agents.NewDriveAgent(fam, parser, creds, cfg.AuthConnectURL, cfg.Drive))
	}
	if len(as) == 0 {
		slog.Warn("no connectors configured; handler requests will degrade to simple responses")
	}
	registry := agents.NewRegistry(as...)

	hist := history.NewMemoryLog()
	orch := orchestrator.New(registry, nlp.NewResponder(provider), gate.New(cat), cat, hist)

	var sink orchestrator.AuditSink
	if len(sinks) > 0 {
		sink = sinks
	}
	svc := orchestrator.NewService(nlp.NewRouter(provider, cat), orch, hist,
		nlp.NewRateLimiter(cfg.RateLimit, time.Minute), budget, sink, msgs)

	return &App{
		server: httpapi.New(cfg.HTTPAddr, svc, creds, cat.IDs()),
		store:  db,
	}, nil
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.server.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// Stop releases the application's resources.
func (a *App) Stop() {
	a.server.Stop()
	if a.store != nil {
		a.store.Close()
	}
}
