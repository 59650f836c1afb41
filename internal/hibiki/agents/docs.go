package agents

import (
	"context"
	"fmt"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// DocsAgent executes document-store actions through a DocsConnector.
type DocsAgent struct {
	base
	conn DocsConnector
}

// NewDocsAgent builds the docs agent over the given connector.
func NewDocsAgent(fam *catalog.Family, parser *nlp.Parser, creds credentials.Store, authURL string, conn DocsConnector) *DocsAgent {
	return &DocsAgent{
		base: base{fam: fam, parser: parser, creds: creds, authURL: authURL},
		conn: conn,
	}
}

// Execute implements Agent.
func (a *DocsAgent) Execute(ctx context.Context, cmd *pipeline.ParsedCommand, ectx pipeline.ExecContext) (*pipeline.HandlerResult, error) {
	if res, err := a.preflight(ctx, cmd, ectx); res != nil || err != nil {
		return res, err
	}

	switch cmd.Action {
	case "create_document":
		title, _ := cmd.StringParam("title")
		content, _ := cmd.StringParam("content")
		item, err := a.conn.CreateDocument(ctx, ectx.Principal, title, content)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		msg := fmt.Sprintf("Created document %q.", item.Name)
		if item.URL != "" {
			msg = fmt.Sprintf("Created document %q: %s", item.Name, item.URL)
		}
		return pipeline.OKResult(cmd.Action, msg), nil

	case "append_text":
		id, _ := cmd.StringParam("documentId")
		text, _ := cmd.StringParam("text")
		if err := a.conn.AppendText(ctx, ectx.Principal, id, text); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Appended the text to document %s.", id)), nil

	case "list_documents":
		query, _ := cmd.StringParam("query")
		items, err := a.conn.ListDocuments(ctx, ectx.Principal, query)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		header := "Your documents:"
		if query != "" {
			header = fmt.Sprintf("Documents matching %q:", query)
		}
		return pipeline.OKResult(cmd.Action, formatItems(header, items)), nil

	case "read_document":
		id, _ := cmd.StringParam("documentId")
		body, err := a.conn.ReadDocument(ctx, ectx.Principal, id)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, body), nil

	case "delete_document":
		id, _ := cmd.StringParam("documentId")
		if err := a.conn.DeleteDocument(ctx, ectx.Principal, id); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Deleted document %s.", id)), nil

	case "share_document":
		id, _ := cmd.StringParam("documentId")
		email, _ := cmd.StringParam("email")
		if err := a.conn.ShareDocument(ctx, ectx.Principal, id, email); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Shared document %s with %s.", id, email)), nil
	}

	return nil, fmt.Errorf("docs: unhandled action %q", cmd.Action)
}

// connectorOutcome maps a connector error onto the result contract:
// a missing authorization passes through as a result, anything else goes
// back as an error for the orchestrator's fallback policy.
func (a *DocsAgent) connectorOutcome(action pipeline.Action, err error) (*pipeline.HandlerResult, error) {
	if ae, ok := AsAuthorization(err); ok {
		return pipeline.AuthorizationResult(a.fam.ID, ae.URL), nil
	}
	return nil, fmt.Errorf("docs: %s: %w", action, err)
}
