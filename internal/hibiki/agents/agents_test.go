package agents_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiki-ai/hibiki/internal/hibiki/agents"
	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

type fakeDrive struct {
	deleted []string
	failErr error
}

func (f *fakeDrive) ListFiles(_ context.Context, _, _ string) ([]agents.Item, error) {
	return []agents.Item{{ID: "1", Name: "draft.txt"}, {ID: "2", Name: "notes.md"}}, nil
}

func (f *fakeDrive) SearchFiles(_ context.Context, _, query string) ([]agents.Item, error) {
	if query == "nothing" {
		return nil, nil
	}
	return []agents.Item{{ID: "1", Name: "draft.txt"}}, nil
}

func (f *fakeDrive) MoveFile(_ context.Context, _, _, _ string) error   { return f.failErr }
func (f *fakeDrive) RenameFile(_ context.Context, _, _, _ string) error { return f.failErr }

func (f *fakeDrive) DeleteFile(_ context.Context, _, name string) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeDrive) ShareFile(_ context.Context, _, _, _ string) error { return f.failErr }

func driveAgent(t *testing.T, conn agents.DriveConnector, creds credentials.Store) *agents.DriveAgent {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	fam, ok := cat.Family("drive")
	if !ok {
		t.Fatal("drive family missing from catalog")
	}
	return agents.NewDriveAgent(fam, nil, creds, "https://hibiki.test/connect", conn)
}

func connectedStore(t *testing.T, userID, service string) credentials.Store {
	t.Helper()
	creds := credentials.NewMemoryStore()
	if err := creds.Set(context.Background(), userID, service, "token"); err != nil {
		t.Fatalf("seed credential: %v", err)
	}
	return creds
}

func TestDriveDeleteFile(t *testing.T) {
	conn := &fakeDrive{}
	agent := driveAgent(t, conn, connectedStore(t, "alice", "drive"))

	cmd := &pipeline.ParsedCommand{
		Handler:    "drive",
		Action:     "delete_file_by_name",
		Parameters: map[string]any{"fileName": "draft.txt"},
	}
	res, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Type != pipeline.ResultOK || !res.Metadata.Success {
		t.Fatalf("Execute() = %+v, want ok/success", res)
	}
	if len(conn.deleted) != 1 || conn.deleted[0] != "draft.txt" {
		t.Fatalf("deleted = %v, want [draft.txt]", conn.deleted)
	}
}

func TestDriveMissingParameterIsValidationError(t *testing.T) {
	agent := driveAgent(t, &fakeDrive{}, connectedStore(t, "alice", "drive"))

	cmd := &pipeline.ParsedCommand{
		Handler:    "drive",
		Action:     "delete_file_by_name",
		Parameters: map[string]any{},
	}
	res, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice"})
	if err != nil {
		t.Fatalf("Execute() error = %v, want validation handled as result", err)
	}
	if res.Type != pipeline.ResultError {
		t.Fatalf("res.Type = %q, want %q", res.Type, pipeline.ResultError)
	}
	if !strings.Contains(res.Content, "fileName") {
		t.Errorf("res.Content = %q, want the missing field named", res.Content)
	}
}

func TestDriveMissingCredentialRequiresAuthorization(t *testing.T) {
	agent := driveAgent(t, &fakeDrive{}, credentials.NewMemoryStore())

	cmd := &pipeline.ParsedCommand{
		Handler:    "drive",
		Action:     "list_files",
		Parameters: map[string]any{},
	}
	res, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Type != pipeline.ResultAuthorizationRequired {
		t.Fatalf("res.Type = %q, want %q", res.Type, pipeline.ResultAuthorizationRequired)
	}
	if !strings.Contains(res.Metadata.AuthorizationURL, "service=drive") {
		t.Errorf("AuthorizationURL = %q, want the drive service named", res.Metadata.AuthorizationURL)
	}
}

func TestDriveConnectorFailureReturnsError(t *testing.T) {
	conn := &fakeDrive{failErr: errors.New("backend unavailable")}
	agent := driveAgent(t, conn, connectedStore(t, "alice", "drive"))

	cmd := &pipeline.ParsedCommand{
		Handler:    "drive",
		Action:     "delete_file_by_name",
		Parameters: map[string]any{"fileName": "draft.txt"},
	}
	res, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice"})
	if err == nil {
		t.Fatalf("Execute() = %+v, want error for fallback handling", res)
	}
	if !strings.Contains(err.Error(), "backend unavailable") {
		t.Errorf("err = %v, want the connector cause preserved", err)
	}
}

func TestDriveConnectorAuthorizationErrorPassesThrough(t *testing.T) {
	conn := &fakeDrive{failErr: &agents.AuthorizationError{Service: "drive", URL: "https://consent.test/drive"}}
	agent := driveAgent(t, conn, connectedStore(t, "alice", "drive"))

	cmd := &pipeline.ParsedCommand{
		Handler:    "drive",
		Action:     "delete_file_by_name",
		Parameters: map[string]any{"fileName": "draft.txt"},
	}
	res, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Type != pipeline.ResultAuthorizationRequired {
		t.Fatalf("res.Type = %q, want %q", res.Type, pipeline.ResultAuthorizationRequired)
	}
	if res.Metadata.AuthorizationURL != "https://consent.test/drive" {
		t.Errorf("AuthorizationURL = %q, want the connector URL", res.Metadata.AuthorizationURL)
	}
}

func TestUnknownActionReportsWithoutConnector(t *testing.T) {
	agent := driveAgent(t, &fakeDrive{}, credentials.NewMemoryStore())

	cmd := &pipeline.ParsedCommand{
		Handler:    "drive",
		Action:     pipeline.ActionUnknown,
		Parameters: map[string]any{},
		UserInput:  "do something weird",
	}
	res, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Type != pipeline.ResultError {
		t.Fatalf("res.Type = %q, want %q", res.Type, pipeline.ResultError)
	}
}

func TestUndoLastReportsPreviousCommand(t *testing.T) {
	agent := driveAgent(t, &fakeDrive{}, credentials.NewMemoryStore())

	last := &pipeline.HistoryEntry{
		Command: &pipeline.ParsedCommand{
			Handler:    "drive",
			Action:     "delete_file_by_name",
			Parameters: map[string]any{"fileName": "draft.txt"},
		},
		Timestamp: time.Now(),
	}
	cmd := &pipeline.ParsedCommand{Handler: "drive", Action: "undo_last", Parameters: map[string]any{}}
	res, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice", LastEntry: last})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Type != pipeline.ResultOK {
		t.Fatalf("res.Type = %q, want %q", res.Type, pipeline.ResultOK)
	}
	if !strings.Contains(res.Content, "delete_file_by_name") {
		t.Errorf("res.Content = %q, want the last action named", res.Content)
	}

	none, err := agent.Execute(context.Background(), cmd, pipeline.ExecContext{Principal: "alice"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(none.Content, "no recorded action") {
		t.Errorf("res.Content = %q, want the empty-history report", none.Content)
	}
}

func TestRegistryLookup(t *testing.T) {
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	fam, _ := cat.Family("drive")
	agent := agents.NewDriveAgent(fam, nil, credentials.NewMemoryStore(), "https://hibiki.test/connect", &fakeDrive{})

	reg := agents.NewRegistry(agent)
	if _, ok := reg.Get("drive"); !ok {
		t.Fatal("Get(drive) not found")
	}
	if _, ok := reg.Get("docs"); ok {
		t.Fatal("Get(docs) unexpectedly found")
	}
	ids := reg.IDs()
	if len(ids) != 1 || ids[0] != "drive" {
		t.Fatalf("IDs() = %v, want [drive]", ids)
	}
}
