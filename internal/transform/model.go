package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"whisk/pkg/errors"
)

// Materialization controls how a model is persisted in the warehouse.
type Materialization string

const (
	MaterializeTable Materialization = "table"
	MaterializeView  Materialization = "view"
)

// Model is one SQL transformation layer. Its body may reference other
// models with {{ ref "name" }} and raw landed tables with
// {{ source "name" }}; refs determine execution order.
type Model struct {
	Name         string
	Path         string
	SQL          string
	Materialized Materialization
	Refs         []string
	Sources      []string
}

var (
	refPattern      = regexp.MustCompile(`\{\{\s*ref\s+"([A-Za-z0-9_]+)"\s*\}\}`)
	sourcePattern   = regexp.MustCompile(`\{\{\s*source\s+"([A-Za-z0-9_]+)"\s*\}\}`)
	configPattern   = regexp.MustCompile(`(?m)^--\s*materialized:\s*(table|view)\s*$`)
)

// LoadModels reads every *.sql file in dir as a model. The model name
// is the file name without extension. A leading config comment of the
// form "-- materialized: view" overrides the default table
// materialization.
func LoadModels(dir string) ([]*Model, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeModelInvalid, "failed to list model files")
	}
	sort.Strings(matches)

	var models []*Model
	for _, path := range matches {
		data, err := os.ReadFile(path) // #nosec G304 - dir comes from validated config
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeModelInvalid, "failed to read model file").
				WithContext("path", path)
		}

		model := &Model{
			Name:         strings.TrimSuffix(filepath.Base(path), ".sql"),
			Path:         path,
			SQL:          string(data),
			Materialized: MaterializeTable,
		}
		if m := configPattern.FindStringSubmatch(model.SQL); m != nil {
			model.Materialized = Materialization(m[1])
		}
		for _, m := range refPattern.FindAllStringSubmatch(model.SQL, -1) {
			model.Refs = append(model.Refs, m[1])
		}
		for _, m := range sourcePattern.FindAllStringSubmatch(model.SQL, -1) {
			model.Sources = append(model.Sources, m[1])
		}

		models = append(models, model)
	}

	return models, nil
}

// Render resolves ref and source placeholders into schema-qualified
// table names.
func (m *Model) Render(rawSchema, analyticsSchema string) string {
	rendered := refPattern.ReplaceAllStringFunc(m.SQL, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		return fmt.Sprintf("%s.%s", analyticsSchema, strings.ToUpper(name))
	})
	rendered = sourcePattern.ReplaceAllStringFunc(rendered, func(match string) string {
		name := sourcePattern.FindStringSubmatch(match)[1]
		return fmt.Sprintf("%s.%s", rawSchema, strings.ToUpper(name))
	})
	return rendered
}

// SortModels orders models so every ref runs before its dependents.
// Unknown refs and cycles are configuration errors.
func SortModels(models []*Model) ([]*Model, error) {
	byName := make(map[string]*Model, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(models))

	var ordered []*Model
	var visit func(m *Model) error
	visit = func(m *Model) error {
		switch state[m.Name] {
		case done:
			return nil
		case visiting:
			return errors.New(errors.ErrCodeModelCycle,
				fmt.Sprintf("model dependency cycle through %q", m.Name))
		}
		state[m.Name] = visiting

		for _, ref := range m.Refs {
			dep, ok := byName[ref]
			if !ok {
				return errors.New(errors.ErrCodeModelNotFound,
					fmt.Sprintf("model %q references unknown model %q", m.Name, ref)).
					WithSuggestions(
						"Check the ref spelling",
						"Raw tables are referenced with source, not ref",
					)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		state[m.Name] = done
		ordered = append(ordered, m)
		return nil
	}

	for _, m := range models {
		if err := visit(m); err != nil {
			return nil, err
		}
	}

	return ordered, nil
}
