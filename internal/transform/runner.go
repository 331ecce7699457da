package transform

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"whisk/internal/warehouse"
	"whisk/pkg/errors"
)

// Executor runs statements against the warehouse. Satisfied by
// *warehouse.Service.
type Executor interface {
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Runner materializes SQL models and the managed dimension tables.
type Runner struct {
	executor Executor
	schemas  warehouse.Schemas
	now      func() time.Time
}

// NewRunner creates a transform runner.
func NewRunner(executor Executor, schemas warehouse.Schemas) *Runner {
	return &Runner{executor: executor, schemas: schemas, now: time.Now}
}

// RunOptions controls a transform run.
type RunOptions struct {
	Select []string // run only these models (and the builtins they name)
	DryRun bool
}

// ModelResult records one materialized model.
type ModelResult struct {
	Name         string
	Materialized Materialization
	SQL          string
	Err          error
}

// RunModels materializes file models in dependency order. On a dry run
// the rendered SQL is returned without touching the warehouse.
func (r *Runner) RunModels(ctx context.Context, models []*Model, opts RunOptions) ([]ModelResult, error) {
	models, err := selectModels(models, opts.Select)
	if err != nil {
		return nil, err
	}

	ordered, err := SortModels(models)
	if err != nil {
		return nil, err
	}

	var results []ModelResult
	for _, model := range ordered {
		if err := warehouse.ValidIdentifier(model.Name); err != nil {
			return results, err
		}

		body := model.Render(r.schemas.Raw, r.schemas.Analytics)
		statement := r.materializeStatement(model, body)

		result := ModelResult{Name: model.Name, Materialized: model.Materialized, SQL: statement}
		if !opts.DryRun {
			if _, err := r.executor.Exec(ctx, statement); err != nil {
				result.Err = err
				results = append(results, result)
				return results, err
			}
		}
		results = append(results, result)
	}

	return results, nil
}

func (r *Runner) materializeStatement(model *Model, body string) string {
	target := fmt.Sprintf("%s.%s", r.schemas.Analytics, strings.ToUpper(model.Name))
	if model.Materialized == MaterializeView {
		return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", target, body)
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS\n%s", target, body)
}

// selectModels filters to the requested subset, keeping every model a
// selected one depends on.
func selectModels(models []*Model, selected []string) ([]*Model, error) {
	if len(selected) == 0 {
		return models, nil
	}

	byName := make(map[string]*Model, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}

	keep := make(map[string]bool)
	var mark func(name string) error
	mark = func(name string) error {
		if keep[name] {
			return nil
		}
		model, ok := byName[name]
		if !ok {
			return errors.New(errors.ErrCodeModelNotFound, fmt.Sprintf("unknown model %q", name))
		}
		keep[name] = true
		for _, ref := range model.Refs {
			if err := mark(ref); err != nil {
				return err
			}
		}
		return nil
	}

	for _, name := range selected {
		if err := mark(name); err != nil {
			return nil, err
		}
	}

	var out []*Model
	for _, m := range models {
		if keep[m.Name] {
			out = append(out, m)
		}
	}
	return out, nil
}
