package agents

import (
	"context"
	"errors"
	"fmt"
)

// AuthorizationError is returned by a connector when the external service
// needs the user's consent before any work can happen. It is a
// precondition, not a failure: the orchestrator passes it straight through
// to the caller as an authorization_required result, never triggering the
// fallback path.
type AuthorizationError struct {
	// Service is the credential-store service key (e.g. "docs").
	Service string
	// URL is the external authorization URL the user must visit.
	URL string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization required for %s", e.Service)
}

// AsAuthorization unwraps err into an *AuthorizationError when possible.
func AsAuthorization(err error) (*AuthorizationError, bool) {
	var ae *AuthorizationError
	ok := errors.As(err, &ae)
	return ae, ok
}

// Item is a minimal reference to an external object (document, file,
// repository) returned by connectors.
type Item struct {
	ID   string
	Name string
	URL  string
}

// DocsConnector is the black-box document-store collaborator. The vendor
// API behind it is out of scope; implementations live outside this repo
// (fakes live in the tests).
type DocsConnector interface {
	CreateDocument(ctx context.Context, principal, title, content string) (*Item, error)
	AppendText(ctx context.Context, principal, documentID, text string) error
	ListDocuments(ctx context.Context, principal, query string) ([]Item, error)
	ReadDocument(ctx context.Context, principal, documentID string) (string, error)
	DeleteDocument(ctx context.Context, principal, documentID string) error
	ShareDocument(ctx context.Context, principal, documentID, email string) error
}

// RepoConnector is the black-box source-control collaborator.
type RepoConnector interface {
	ListRepos(ctx context.Context, principal, visibility string) ([]Item, error)
	ListIssues(ctx context.Context, principal, repo, state string) ([]Item, error)
	CreateIssue(ctx context.Context, principal, repo, title, body string) (*Item, error)
	CloseIssue(ctx context.Context, principal, repo string, issueNumber int) error
	GetReadme(ctx context.Context, principal, repo string) (string, error)
}

// DriveConnector is the black-box file-drive collaborator.
type DriveConnector interface {
	ListFiles(ctx context.Context, principal, folder string) ([]Item, error)
	SearchFiles(ctx context.Context, principal, query string) ([]Item, error)
	MoveFile(ctx context.Context, principal, fileName, folder string) error
	RenameFile(ctx context.Context, principal, fileName, newName string) error
	DeleteFile(ctx context.Context, principal, fileName string) error
	ShareFile(ctx context.Context, principal, fileName, email string) error
}
