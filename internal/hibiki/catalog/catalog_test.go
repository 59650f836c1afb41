package catalog_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/hibiki-ai/hibiki/internal/hibiki/catalog"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

func load(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cat
}

func TestLoadEmbeddedManifests(t *testing.T) {
	cat := load(t)

	ids := cat.IDs()
	want := []string{"docs", "drive", "repo"}
	if len(ids) != len(want) {
		t.Fatalf("IDs() = %v, want %v", ids, want)
	}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("IDs()[%d] = %q, want %q (sorted)", i, ids[i], id)
		}
	}

	for _, id := range want {
		fam, ok := cat.Family(id)
		if !ok {
			t.Fatalf("Family(%q) missing", id)
		}
		if fam.Description == "" {
			t.Errorf("family %q has no description", id)
		}
		// Every family accepts the shared unknown action.
		if _, ok := fam.Action(pipeline.ActionUnknown); !ok {
			t.Errorf("family %q does not accept the unknown action", id)
		}
	}
}

func TestMutatingSets(t *testing.T) {
	cat := load(t)
	drive, _ := cat.Family("drive")

	for action, want := range map[pipeline.Action]bool{
		"delete_file_by_name": true,
		"rename_file":         true,
		"move_file":           true,
		"share_file":          true,
		"list_files":          false,
		"search_files":        false,
		"undo_last":           false,
		"unknown":             false,
		"no_such_action":      false,
	} {
		if got := drive.IsMutating(action); got != want {
			t.Errorf("IsMutating(%q) = %v, want %v", action, got, want)
		}
	}
}

func TestValidateParamsNamesMissingField(t *testing.T) {
	cat := load(t)
	drive, _ := cat.Family("drive")

	err := drive.ValidateParams("delete_file_by_name", map[string]any{})
	if err == nil {
		t.Fatal("ValidateParams() with missing fileName = nil, want error")
	}
	if !strings.Contains(err.Error(), "fileName") {
		t.Errorf("error = %q, want the offending field named", err)
	}
}

func TestValidateParamsRejectsExtraField(t *testing.T) {
	cat := load(t)
	drive, _ := cat.Family("drive")

	err := drive.ValidateParams("delete_file_by_name", map[string]any{
		"fileName": "draft.txt",
		"force":    true,
	})
	if err == nil {
		t.Fatal("ValidateParams() with an undeclared field = nil, want error")
	}
}

func TestValidateParamsAccepts(t *testing.T) {
	cat := load(t)
	drive, _ := cat.Family("drive")

	if err := drive.ValidateParams("delete_file_by_name", map[string]any{"fileName": "draft.txt"}); err != nil {
		t.Errorf("ValidateParams() = %v, want nil", err)
	}
	// nil parameters validate as an empty object.
	if err := drive.ValidateParams("undo_last", nil); err != nil {
		t.Errorf("ValidateParams(undo_last, nil) = %v, want nil", err)
	}
}

func TestValidateParamsUnknownAction(t *testing.T) {
	cat := load(t)
	drive, _ := cat.Family("drive")

	err := drive.ValidateParams("no_such_action", nil)
	if !errors.Is(err, catalog.ErrUnknownAction) {
		t.Errorf("ValidateParams() error = %v, want ErrUnknownAction", err)
	}
}

func TestRouterCatalogueListsEveryFamily(t *testing.T) {
	cat := load(t)
	listing := cat.RouterCatalogue()
	for _, id := range cat.IDs() {
		if !strings.Contains(listing, "- "+id+":") {
			t.Errorf("RouterCatalogue() missing %q:\n%s", id, listing)
		}
	}
}
