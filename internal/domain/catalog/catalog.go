// Package catalog holds the built-in task and error type catalog and seeds
// it into a store.
package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/internal/domain/scoring"
)

//go:embed seed.yaml
var seedYAML []byte

// Standard defaults applied when a catalog entry omits a value.
const (
	defaultTargetTime = 240
	defaultMaxMinor   = 2
	defaultMaxMajor   = 0
)

// ErrInvalidCatalog wraps every validation failure.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is the decoded seed document.
type Catalog struct {
	Level      string      `yaml:"level"`
	Tasks      []TaskEntry `yaml:"tasks"`
	ErrorTypes []ErrorType `yaml:"error_types"`
}

// TaskEntry is one task with its standard at Catalog.Level.
type TaskEntry struct {
	Name        string        `yaml:"name"`
	Slug        string        `yaml:"slug"`
	Category    string        `yaml:"category"`
	Description string        `yaml:"description"`
	Standard    StandardEntry `yaml:"standard"`
}

// StandardEntry is the benchmark of a task. Nil fields take the defaults.
type StandardEntry struct {
	TargetTimeSeconds *int `yaml:"target_time_seconds"`
	MaxMinorErrors    *int `yaml:"max_minor_errors"`
	MaxMajorErrors    *int `yaml:"max_major_errors"`
}

// ErrorType is one catalogued error kind.
type ErrorType struct {
	Name        string `yaml:"name"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(seedYAML)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Decode reads a catalog document from r.
func Decode(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Validate checks required fields, uniqueness and severities.
func (c *Catalog) Validate() error {
	if c.Level == "" {
		return fmt.Errorf("%w: level is required", ErrInvalidCatalog)
	}
	slugs := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.Name == "" || t.Slug == "" {
			return fmt.Errorf("%w: task %d needs a name and slug", ErrInvalidCatalog, i)
		}
		if slugs[t.Slug] {
			return fmt.Errorf("%w: duplicate slug %q", ErrInvalidCatalog, t.Slug)
		}
		slugs[t.Slug] = true
		if st := t.Standard.Model(0, c.Level); st.TargetTimeSeconds <= 0 || st.MaxMinorErrors < 0 || st.MaxMajorErrors < 0 {
			return fmt.Errorf("%w: task %q has an invalid standard", ErrInvalidCatalog, t.Slug)
		}
	}
	names := make(map[string]bool, len(c.ErrorTypes))
	for _, e := range c.ErrorTypes {
		if e.Name == "" || names[e.Name] {
			return fmt.Errorf("%w: error type %q is empty or duplicated", ErrInvalidCatalog, e.Name)
		}
		names[e.Name] = true
		if !scoring.Severity(e.Severity).Valid() {
			return fmt.Errorf("%w: error type %q has severity %q", ErrInvalidCatalog, e.Name, e.Severity)
		}
	}
	return nil
}

// Model returns the standard for taskID at level with defaults filled in.
func (s StandardEntry) Model(taskID int64, level string) model.Standard {
	return model.Standard{
		TaskID:              taskID,
		Level:               level,
		TargetTimeSeconds:   valueOr(s.TargetTimeSeconds, defaultTargetTime),
		MaxMinorErrors:      valueOr(s.MaxMinorErrors, defaultMaxMinor),
		MaxMajorErrors:      valueOr(s.MaxMajorErrors, defaultMaxMajor),
		ConsecutiveRequired: 1,
		ObjectiveCriteria:   map[string]any{"notes": "Baseline standard"},
	}
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// Store is the subset of the relational store seeding needs.
type Store interface {
	UpsertTask(ctx context.Context, t model.Task) (model.Task, error)
	UpsertStandard(ctx context.Context, s model.Standard) (model.Standard, error)
	CountErrorTypes(ctx context.Context) (int, error)
	CreateErrorType(ctx context.Context, e model.ErrorType) (model.ErrorType, error)
}

// Result counts what Seed wrote.
type Result struct {
	Tasks      int
	Standards  int
	ErrorTypes int
}

// Seed upserts every task by slug and its standard at the catalog level.
// Error types are only inserted into an empty table. Seeding is idempotent.
func (c *Catalog) Seed(ctx context.Context, store Store) (Result, error) {
	var res Result
	for _, entry := range c.Tasks {
		task, err := store.UpsertTask(ctx, model.Task{
			Name:        entry.Name,
			Slug:        entry.Slug,
			Category:    entry.Category,
			Description: entry.Description,
		})
		if err != nil {
			return res, fmt.Errorf("seed task %q: %w", entry.Slug, err)
		}
		res.Tasks++

		if _, err := store.UpsertStandard(ctx, entry.Standard.Model(task.ID, c.Level)); err != nil {
			return res, fmt.Errorf("seed standard for %q: %w", entry.Slug, err)
		}
		res.Standards++
	}

	n, err := store.CountErrorTypes(ctx)
	if err != nil {
		return res, fmt.Errorf("count error types: %w", err)
	}
	if n > 0 {
		return res, nil
	}
	for _, e := range c.ErrorTypes {
		if _, err := store.CreateErrorType(ctx, model.ErrorType{
			Name:        e.Name,
			Description: e.Description,
			Severity:    scoring.Severity(e.Severity),
		}); err != nil {
			return res, fmt.Errorf("seed error type %q: %w", e.Name, err)
		}
		res.ErrorTypes++
	}
	return res, nil
}
