package memory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Adam-Huang/reflect/internal/model"
	"github.com/Adam-Huang/reflect/internal/store"
)

// CascadeResult reports a label or trigger change and the memories it rewrote.
// The store applies each cascade in one transaction, so Affected is all or nothing.
type CascadeResult struct {
	Name     string   `json:"name" yaml:"name"`
	Affected []string `json:"affected" yaml:"affected"`
}

// AddLabel registers a new global label.
func (m *Manager) AddLabel(ctx context.Context, name, description string) error {
	if err := checkName("label", name); err != nil {
		return err
	}
	if err := m.store.InsertLabel(ctx, model.Label{Name: name, Description: description}); err != nil {
		return translate("label", name, err)
	}
	return m.reloadAfter(ctx, "label added", name, nil)
}

// UpdateLabel renames a label and optionally replaces its description. An empty newName keeps the name.
// Every memory carrying oldName gets newName in the same position.
func (m *Manager) UpdateLabel(ctx context.Context, oldName, newName string, description *string) (*CascadeResult, error) {
	if newName == "" {
		newName = oldName
	}
	if err := checkName("label", newName); err != nil {
		return nil, err
	}
	affected, err := m.store.RenameLabel(ctx, oldName, newName, description)
	if err != nil {
		return nil, translate("label", oldName, err)
	}
	if err := m.reloadAfter(ctx, "label updated", newName, affected); err != nil {
		return nil, err
	}
	return &CascadeResult{Name: newName, Affected: nonNil(affected)}, nil
}

// DeleteLabel removes a label and strips it from every memory.
func (m *Manager) DeleteLabel(ctx context.Context, name string) (*CascadeResult, error) {
	affected, err := m.store.DeleteLabel(ctx, name)
	if err != nil {
		return nil, translate("label", name, err)
	}
	if err := m.reloadAfter(ctx, "label deleted", name, affected); err != nil {
		return nil, err
	}
	return &CascadeResult{Name: name, Affected: nonNil(affected)}, nil
}

// AddTrigger registers a new global trigger.
func (m *Manager) AddTrigger(ctx context.Context, name, description string) error {
	if err := checkName("trigger", name); err != nil {
		return err
	}
	if err := m.store.InsertTrigger(ctx, model.Trigger{Name: name, Description: description}); err != nil {
		return translate("trigger", name, err)
	}
	return m.reloadAfter(ctx, "trigger added", name, nil)
}

// UpdateTrigger renames a trigger and optionally replaces its description. An empty newName keeps the name.
func (m *Manager) UpdateTrigger(ctx context.Context, oldName, newName string, description *string) (*CascadeResult, error) {
	if newName == "" {
		newName = oldName
	}
	if err := checkName("trigger", newName); err != nil {
		return nil, err
	}
	affected, err := m.store.RenameTrigger(ctx, oldName, newName, description)
	if err != nil {
		return nil, translate("trigger", oldName, err)
	}
	if err := m.reloadAfter(ctx, "trigger updated", newName, affected); err != nil {
		return nil, err
	}
	return &CascadeResult{Name: newName, Affected: nonNil(affected)}, nil
}

// DeleteTrigger removes a trigger and clears it from every memory.
func (m *Manager) DeleteTrigger(ctx context.Context, name string) (*CascadeResult, error) {
	affected, err := m.store.DeleteTrigger(ctx, name)
	if err != nil {
		return nil, translate("trigger", name, err)
	}
	if err := m.reloadAfter(ctx, "trigger deleted", name, affected); err != nil {
		return nil, err
	}
	return &CascadeResult{Name: name, Affected: nonNil(affected)}, nil
}

func (m *Manager) reloadAfter(ctx context.Context, msg, name string, affected []string) error {
	m.log.Info(msg, zap.String("name", name), zap.Int("affected", len(affected)))
	return m.Reload(ctx)
}

// translate maps a duplicate name to ErrInvalidArgument; not-found passes through.
func translate(kind, name string, err error) error {
	if errors.Is(err, store.ErrExists) {
		return fmt.Errorf("%s %q already exists: %w", kind, name, ErrInvalidArgument)
	}
	return err
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
