package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adam-Huang/reflect/internal/model"
)

// Dump is a full snapshot of the record store.
type Dump struct {
	Labels   []model.Label   `json:"labels" yaml:"labels"`
	Triggers []model.Trigger `json:"triggers" yaml:"triggers"`
	Memories []model.Memory  `json:"memories" yaml:"memories"`
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Labels   int `json:"labels" yaml:"labels"`
	Triggers int `json:"triggers" yaml:"triggers"`
	Memories int `json:"memories" yaml:"memories"`
	Skipped  int `json:"skipped" yaml:"skipped"`
}

// ExportAll returns every label, trigger and memory.
func ExportAll(ctx context.Context, s Store) (*Dump, error) {
	labels, err := s.Labels(ctx)
	if err != nil {
		return nil, fmt.Errorf("export labels: %w", err)
	}
	triggers, err := s.Triggers(ctx)
	if err != nil {
		return nil, fmt.Errorf("export triggers: %w", err)
	}
	memories, err := s.Memories(ctx)
	if err != nil {
		return nil, fmt.Errorf("export memories: %w", err)
	}
	return &Dump{Labels: labels, Triggers: triggers, Memories: memories}, nil
}

// Import stores a dump. Existing names and memory ids are skipped.
func Import(ctx context.Context, s Store, d *Dump) (ImportResult, error) {
	var res ImportResult
	for _, l := range d.Labels {
		if l.Name == "" {
			continue
		}
		switch err := s.InsertLabel(ctx, l); {
		case errors.Is(err, ErrExists):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Labels++
		}
	}
	for _, t := range d.Triggers {
		if t.Name == "" {
			continue
		}
		switch err := s.InsertTrigger(ctx, t); {
		case errors.Is(err, ErrExists):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Triggers++
		}
	}
	for i := range d.Memories {
		m := d.Memories[i].Clone()
		switch err := s.InsertMemory(ctx, &m); {
		case errors.Is(err, ErrExists):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.Memories++
		}
	}
	return res, nil
}
