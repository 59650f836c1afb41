// Package catalog loads the handler family manifests that define what the
// pipeline is allowed to do.
//
// Each family (docs, repo, drive) is described by a YAML manifest embedded
// in the binary: its id, the one-line description shown to the strategy
// router, the instruction template for its action parser, and the closed
// set of actions with a JSON Schema per action. The schemas are compiled
// once at load time and used to validate every parameter payload the model
// produces: unknown or missing fields are rejected explicitly instead of
// being trusted at property-access time.
package catalog

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
)

//go:embed manifests/*.yaml
var manifestsFS embed.FS

// manifestDoc is the on-disk YAML shape of a family manifest.
type manifestDoc struct {
	ID          string              `yaml:"id"`
	Description string              `yaml:"description"`
	Service     string              `yaml:"service"`
	Instruction string              `yaml:"instruction"`
	Actions     []manifestActionDoc `yaml:"actions"`
}

type manifestActionDoc struct {
	Name     string         `yaml:"name"`
	Summary  string         `yaml:"summary"`
	Mutating bool           `yaml:"mutating"`
	Schema   map[string]any `yaml:"schema"`
}

// ActionSpec describes one action in a family's closed set.
type ActionSpec struct {
	// Name is the action key the parser's model must produce.
	Name pipeline.Action

	// Summary is a one-line description used in the parser prompt.
	Summary string

	// Mutating marks actions with externally visible, state-changing
	// effects. The confirmation gate unions this with the parser's own
	// confirmationRequired flag.
	Mutating bool

	// SchemaJSON is the action's parameter schema as compact JSON, shown
	// to the model so it knows the expected parameter shape.
	SchemaJSON string

	compiled *jsonschema.Schema
}

// Family is one handler family's catalog entry.
type Family struct {
	// ID is the handler id the router selects by (e.g. "docs").
	ID string

	// Description is the one-line use-case description enumerated in the
	// strategy router's classification prompt.
	Description string

	// Service names the credential-store service key the family's
	// connector authenticates against.
	Service string

	// Instruction is the family-specific block prepended to the shared
	// action-parser prompt.
	Instruction string

	actions map[pipeline.Action]*ActionSpec
	order   []pipeline.Action
}

// Action returns the spec for the given action key.
func (f *Family) Action(a pipeline.Action) (*ActionSpec, bool) {
	spec, ok := f.actions[a]
	return spec, ok
}

// Actions returns the family's action specs in manifest order.
func (f *Family) Actions() []*ActionSpec {
	out := make([]*ActionSpec, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.actions[name])
	}
	return out
}

// IsMutating reports whether the action is in the family's static
// mutating-action set. Unknown actions are never mutating.
func (f *Family) IsMutating(a pipeline.Action) bool {
	spec, ok := f.actions[a]
	return ok && spec.Mutating
}

// ErrUnknownAction is returned by ValidateParams when the action key is not
// part of the family's set.
var ErrUnknownAction = errors.New("catalog: unknown action")

// ValidateParams checks params against the action's compiled schema.
// The returned error message is user-presentable and names the offending
// field (e.g. a missing required parameter).
func (f *Family) ValidateParams(a pipeline.Action, params map[string]any) error {
	spec, ok := f.actions[a]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAction, a)
	}
	if spec.compiled == nil {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}
	// The schema validator needs plain JSON types; parameters decoded from
	// the model's output already are, but round-trip defensively so typed
	// values injected by tests validate the same way.
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("catalog: encode parameters: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("catalog: decode parameters: %w", err)
	}
	if err := spec.compiled.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid parameters for %s: %s", a, leafMessage(ve))
		}
		return fmt.Errorf("invalid parameters for %s: %v", a, err)
	}
	return nil
}

// leafMessage digs to the most specific cause of a validation error so the
// user sees "missing properties: 'fileName'" instead of the root summary.
func leafMessage(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.Message
}

// Catalog holds all loaded families.
type Catalog struct {
	families map[string]*Family
	ids      []string
}

// Family returns the family with the given id.
func (c *Catalog) Family(id string) (*Family, bool) {
	f, ok := c.families[id]
	return f, ok
}

// IDs returns all family ids, sorted.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.ids...)
}

// RouterCatalogue renders the "id: description" listing enumerated in the
// strategy router's classification prompt.
func (c *Catalog) RouterCatalogue() string {
	var sb strings.Builder
	for _, id := range c.ids {
		fmt.Fprintf(&sb, "- %s: %s\n", id, c.families[id].Description)
	}
	return sb.String()
}

// Load parses and compiles every embedded manifest.
func Load() (*Catalog, error) {
	entries, err := manifestsFS.ReadDir("manifests")
	if err != nil {
		return nil, fmt.Errorf("catalog: read manifests: %w", err)
	}

	c := &Catalog{families: make(map[string]*Family)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := manifestsFS.ReadFile("manifests/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", entry.Name(), err)
		}
		fam, err := parseManifest(data)
		if err != nil {
			return nil, fmt.Errorf("catalog: manifest %s: %w", entry.Name(), err)
		}
		if _, dup := c.families[fam.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate family id %q", fam.ID)
		}
		c.families[fam.ID] = fam
	}
	if len(c.families) == 0 {
		return nil, errors.New("catalog: no family manifests found")
	}

	for id := range c.families {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c, nil
}

// parseManifest decodes one YAML manifest and compiles its action schemas.
func parseManifest(data []byte) (*Family, error) {
	var doc manifestDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return nil, errors.New("id must not be empty")
	}
	if strings.TrimSpace(doc.Description) == "" {
		return nil, fmt.Errorf("family %q: description must not be empty", doc.ID)
	}
	if len(doc.Actions) == 0 {
		return nil, fmt.Errorf("family %q: at least one action is required", doc.ID)
	}
	if doc.Service == "" {
		doc.Service = doc.ID
	}

	fam := &Family{
		ID:          doc.ID,
		Description: doc.Description,
		Service:     doc.Service,
		Instruction: doc.Instruction,
		actions:     make(map[pipeline.Action]*ActionSpec, len(doc.Actions)+1),
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7

	for i, a := range doc.Actions {
		if a.Name == "" {
			return nil, fmt.Errorf("family %q: actions[%d]: name must not be empty", doc.ID, i)
		}
		name := pipeline.Action(a.Name)
		if _, dup := fam.actions[name]; dup {
			return nil, fmt.Errorf("family %q: duplicate action %q", doc.ID, a.Name)
		}

		spec := &ActionSpec{
			Name:     name,
			Summary:  a.Summary,
			Mutating: a.Mutating,
		}
		if a.Schema != nil {
			schemaJSON, err := json.Marshal(a.Schema)
			if err != nil {
				return nil, fmt.Errorf("family %q: action %q: encode schema: %w", doc.ID, a.Name, err)
			}
			url := fmt.Sprintf("hibiki://%s/%s.schema.json", doc.ID, a.Name)
			if err := compiler.AddResource(url, strings.NewReader(string(schemaJSON))); err != nil {
				return nil, fmt.Errorf("family %q: action %q: add schema: %w", doc.ID, a.Name, err)
			}
			compiled, err := compiler.Compile(url)
			if err != nil {
				return nil, fmt.Errorf("family %q: action %q: compile schema: %w", doc.ID, a.Name, err)
			}
			spec.compiled = compiled
			spec.SchemaJSON = string(schemaJSON)
		}

		fam.actions[name] = spec
		fam.order = append(fam.order, name)
	}

	// Every family accepts "unknown" so a failed mapping is representable
	// without inventing a manifest entry for it.
	if _, ok := fam.actions[pipeline.ActionUnknown]; !ok {
		fam.actions[pipeline.ActionUnknown] = &ActionSpec{
			Name:    pipeline.ActionUnknown,
			Summary: "the request does not map onto any action in this family",
		}
		fam.order = append(fam.order, pipeline.ActionUnknown)
	}

	return fam, nil
}
