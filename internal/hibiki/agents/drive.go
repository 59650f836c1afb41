package agents

import (
	"context"
	"fmt"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// DriveAgent executes file-drive actions through a DriveConnector.
type DriveAgent struct {
	base
	conn DriveConnector
}

// NewDriveAgent builds the drive agent over the given connector.
func NewDriveAgent(fam *catalog.Family, parser *nlp.Parser, creds credentials.Store, authURL string, conn DriveConnector) *DriveAgent {
	return &DriveAgent{
		base: base{fam: fam, parser: parser, creds: creds, authURL: authURL},
		conn: conn,
	}
}

// Execute implements Agent.
func (a *DriveAgent) Execute(ctx context.Context, cmd *pipeline.ParsedCommand, ectx pipeline.ExecContext) (*pipeline.HandlerResult, error) {
	if res, err := a.preflight(ctx, cmd, ectx); res != nil || err != nil {
		return res, err
	}

	switch cmd.Action {
	case "list_files":
		folder, _ := cmd.StringParam("folder")
		items, err := a.conn.ListFiles(ctx, ectx.Principal, folder)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		header := "Your files:"
		if folder != "" {
			header = fmt.Sprintf("Files in %s:", folder)
		}
		return pipeline.OKResult(cmd.Action, formatItems(header, items)), nil

	case "search_files":
		query, _ := cmd.StringParam("query")
		items, err := a.conn.SearchFiles(ctx, ectx.Principal, query)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, formatItems(fmt.Sprintf("Files matching %q:", query), items)), nil

	case "move_file":
		name, _ := cmd.StringParam("fileName")
		folder, _ := cmd.StringParam("folder")
		if err := a.conn.MoveFile(ctx, ectx.Principal, name, folder); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Moved %q to %s.", name, folder)), nil

	case "rename_file":
		name, _ := cmd.StringParam("fileName")
		newName, _ := cmd.StringParam("newName")
		if err := a.conn.RenameFile(ctx, ectx.Principal, name, newName); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Renamed %q to %q.", name, newName)), nil

	case "delete_file_by_name":
		name, _ := cmd.StringParam("fileName")
		if err := a.conn.DeleteFile(ctx, ectx.Principal, name); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Deleted %q.", name)), nil

	case "share_file":
		name, _ := cmd.StringParam("fileName")
		email, _ := cmd.StringParam("email")
		if err := a.conn.ShareFile(ctx, ectx.Principal, name, email); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Shared %q with %s.", name, email)), nil
	}

	return nil, fmt.Errorf("drive: unhandled action %q", cmd.Action)
}

func (a *DriveAgent) connectorOutcome(action pipeline.Action, err error) (*pipeline.HandlerResult, error) {
	if ae, ok := AsAuthorization(err); ok {
		return pipeline.AuthorizationResult(a.fam.ID, ae.URL), nil
	}
	return nil, fmt.Errorf("drive: %s: %w", action, err)
}
