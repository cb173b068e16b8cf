package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Adam-Huang/reflect/internal/model"
)

// Files of the JSON layout used before the SQLite store existed.
const (
	legacyMemoryFile   = "memory_state.json"
	legacyLabelsFile   = "labels.json"
	legacyTriggersFile = "triggers.json"
)

type legacyState struct {
	MemoryData []legacyMemory `json:"memory_data"`
}

type legacyMemory struct {
	OriginalText string    `json:"original_text"`
	Summary      string    `json:"summary"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
	Labels       []string  `json:"labels"`
	Trigger      *string   `json:"trigger"`
	Embedding    []float32 `json:"embedding"`
}

// legacyTimeLayouts covers Python's datetime.isoformat output with and without microseconds.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
}

// ReadLegacyDir loads memory_state.json, labels.json and triggers.json from dir into a Dump.
// Missing label or trigger files are treated as empty.
func ReadLegacyDir(dir string) (*Dump, error) {
	var state legacyState
	if err := readJSON(filepath.Join(dir, legacyMemoryFile), &state); err != nil {
		return nil, err
	}

	var labelNames, triggerNames []string
	if err := readJSON(filepath.Join(dir, legacyLabelsFile), &labelNames); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, legacyTriggersFile), &triggerNames); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	d := &Dump{}
	for _, name := range labelNames {
		if name == "" {
			continue
		}
		d.Labels = append(d.Labels, model.Label{
			Name:        name,
			Description: fmt.Sprintf("Label for categorizing memories as '%s'", name),
		})
	}
	for _, name := range triggerNames {
		if name == "" {
			continue
		}
		d.Triggers = append(d.Triggers, model.Trigger{
			Name:        name,
			Description: fmt.Sprintf("Trigger for activating memories related to '%s'", name),
		})
	}

	for i, lm := range state.MemoryData {
		created, err := parseLegacyTime(lm.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("memory #%d created_at: %w", i, err)
		}
		updated, err := parseLegacyTime(lm.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("memory #%d updated_at: %w", i, err)
		}
		labels := []string{}
		for _, l := range lm.Labels {
			if l != "" {
				labels = append(labels, l)
			}
		}
		var trigger *string
		if lm.Trigger != nil && *lm.Trigger != "" {
			trigger = lm.Trigger
		}
		d.Memories = append(d.Memories, model.Memory{
			OriginalText: lm.OriginalText,
			Summary:      lm.Summary,
			CreatedAt:    created,
			UpdatedAt:    updated,
			Labels:       labels,
			Trigger:      trigger,
			Embedding:    lm.Embedding,
		})
	}
	return d, nil
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func parseLegacyTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}
