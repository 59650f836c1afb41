package agents

import (
	"context"
	"fmt"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
	"github.com/hibiki-ai/hibiki/internal/hibiki/nlp"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

// RepoAgent executes source-control actions through a RepoConnector.
type RepoAgent struct {
	base
	conn RepoConnector
}

// NewRepoAgent builds the repo agent over the given connector.
func NewRepoAgent(fam *catalog.Family, parser *nlp.Parser, creds credentials.Store, authURL string, conn RepoConnector) *RepoAgent {
	return &RepoAgent{
		base: base{fam: fam, parser: parser, creds: creds, authURL: authURL},
		conn: conn,
	}
}

// Execute implements Agent.
func (a *RepoAgent) Execute(ctx context.Context, cmd *pipeline.ParsedCommand, ectx pipeline.ExecContext) (*pipeline.HandlerResult, error) {
	if res, err := a.preflight(ctx, cmd, ectx); res != nil || err != nil {
		return res, err
	}

	switch cmd.Action {
	case "list_repos":
		visibility, _ := cmd.StringParam("visibility")
		items, err := a.conn.ListRepos(ctx, ectx.Principal, visibility)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, formatItems("Your repositories:", items)), nil

	case "list_issues":
		repo, _ := cmd.StringParam("repo")
		state, _ := cmd.StringParam("state")
		items, err := a.conn.ListIssues(ctx, ectx.Principal, repo, state)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		header := fmt.Sprintf("Issues in %s:", repo)
		if state != "" {
			header = fmt.Sprintf("%s issues in %s:", state, repo)
		}
		return pipeline.OKResult(cmd.Action, formatItems(header, items)), nil

	case "create_issue":
		repo, _ := cmd.StringParam("repo")
		title, _ := cmd.StringParam("title")
		body, _ := cmd.StringParam("body")
		item, err := a.conn.CreateIssue(ctx, ectx.Principal, repo, title, body)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		msg := fmt.Sprintf("Created issue %q in %s.", item.Name, repo)
		if item.URL != "" {
			msg = fmt.Sprintf("Created issue %q in %s: %s", item.Name, repo, item.URL)
		}
		return pipeline.OKResult(cmd.Action, msg), nil

	case "close_issue":
		repo, _ := cmd.StringParam("repo")
		number := intParam(cmd, "issueNumber")
		if err := a.conn.CloseIssue(ctx, ectx.Principal, repo, number); err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, fmt.Sprintf("Closed issue #%d in %s.", number, repo)), nil

	case "get_readme":
		repo, _ := cmd.StringParam("repo")
		body, err := a.conn.GetReadme(ctx, ectx.Principal, repo)
		if err != nil {
			return a.connectorOutcome(cmd.Action, err)
		}
		return pipeline.OKResult(cmd.Action, body), nil
	}

	return nil, fmt.Errorf("repo: unhandled action %q", cmd.Action)
}

func (a *RepoAgent) connectorOutcome(action pipeline.Action, err error) (*pipeline.HandlerResult, error) {
	if ae, ok := AsAuthorization(err); ok {
		return pipeline.AuthorizationResult(a.fam.ID, ae.URL), nil
	}
	return nil, fmt.Errorf("repo: %s: %w", action, err)
}

// intParam reads a numeric parameter, tolerating the float64 that
// encoding/json produces for all JSON numbers.
func intParam(cmd *pipeline.ParsedCommand, name string) int {
	switch v := cmd.Parameters[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
