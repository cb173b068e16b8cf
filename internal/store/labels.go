package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/Adam-Huang/reflect/internal/model"
)

// tagTable describes the Labels and Triggers tables, which share a shape.
type tagTable struct {
	table  string
	column string
	kind   string
}

var (
	labelTable   = tagTable{table: "Labels", column: "label", kind: "label"}
	triggerTable = tagTable{table: "Triggers", column: "trigger", kind: "trigger"}
)

func (s *SQLiteStore) InsertLabel(ctx context.Context, l model.Label) error {
	return s.insertTag(ctx, labelTable, l.Name, l.Description)
}

func (s *SQLiteStore) Labels(ctx context.Context) ([]model.Label, error) {
	var labels []model.Label
	err := s.queryTags(ctx, labelTable, func(name, desc string) {
		labels = append(labels, model.Label{Name: name, Description: desc})
	})
	return labels, err
}

func (s *SQLiteStore) InsertTrigger(ctx context.Context, t model.Trigger) error {
	return s.insertTag(ctx, triggerTable, t.Name, t.Description)
}

func (s *SQLiteStore) Triggers(ctx context.Context) ([]model.Trigger, error) {
	var triggers []model.Trigger
	err := s.queryTags(ctx, triggerTable, func(name, desc string) {
		triggers = append(triggers, model.Trigger{Name: name, Description: desc})
	})
	return triggers, err
}

func (s *SQLiteStore) insertTag(ctx context.Context, t tagTable, name, description string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (%s, description) VALUES (?, ?)`, t.table, t.column),
		name, description)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %q: %w", t.kind, name, ErrExists)
		}
		return fmt.Errorf("insert %s: %w", t.kind, err)
	}
	return nil
}

func (s *SQLiteStore) queryTags(ctx context.Context, t tagTable, fn func(name, desc string)) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, description FROM %s ORDER BY id`, t.column, t.table))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name, desc string
		if err := rows.Scan(&name, &desc); err != nil {
			return err
		}
		fn(name, desc)
	}
	return rows.Err()
}

// renameTag updates the name row. A nil description keeps the current one.
func renameTag(ctx context.Context, tx *sql.Tx, t tagTable, oldName, newName string, description *string) error {
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ?, description = COALESCE(?, description) WHERE %s = ?`,
			t.table, t.column, t.column),
		newName, description, oldName)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %q: %w", t.kind, newName, ErrExists)
		}
		return fmt.Errorf("rename %s: %w", t.kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %q: %w", t.kind, oldName, ErrNotFound)
	}
	return nil
}

func deleteTag(ctx context.Context, tx *sql.Tx, t tagTable, name string) error {
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, t.table, t.column), name)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %q: %w", t.kind, name, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) RenameLabel(ctx context.Context, oldName, newName string, description *string) ([]string, error) {
	return s.rewriteLabels(ctx, func(tx *sql.Tx) error {
		return renameTag(ctx, tx, labelTable, oldName, newName, description)
	}, func(labels []string) ([]string, bool) {
		if !slices.Contains(labels, oldName) {
			return labels, false
		}
		out := make([]string, 0, len(labels))
		for _, l := range labels {
			if l == oldName {
				l = newName
			}
			if !slices.Contains(out, l) {
				out = append(out, l)
			}
		}
		return out, true
	})
}

func (s *SQLiteStore) DeleteLabel(ctx context.Context, name string) ([]string, error) {
	return s.rewriteLabels(ctx, func(tx *sql.Tx) error {
		return deleteTag(ctx, tx, labelTable, name)
	}, func(labels []string) ([]string, bool) {
		if !slices.Contains(labels, name) {
			return labels, false
		}
		return slices.DeleteFunc(slices.Clone(labels), func(l string) bool { return l == name }), true
	})
}

// rewriteLabels applies tagOp and then rewrites the label column of every memory
// carrying the name, all inside one transaction. rewrite reports whether a memory
// references the name. A name with no registry row still cascades over the memories
// that use it; ErrNotFound means neither exists. Memories whose labels come out
// unchanged are not rewritten or reported.
func (s *SQLiteStore) rewriteLabels(ctx context.Context, tagOp func(*sql.Tx) error, rewrite func([]string) ([]string, bool)) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tagErr := tagOp(tx)
	if tagErr != nil && !errors.Is(tagErr, ErrNotFound) {
		return nil, tagErr
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, labels FROM Memory WHERE labels != '' ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	type change struct {
		id     string
		labels string
	}
	var (
		changes    []change
		referenced bool
	)
	for rows.Next() {
		var id, joined string
		if err := rows.Scan(&id, &joined); err != nil {
			rows.Close()
			return nil, err
		}
		out, ok := rewrite(SplitLabels(joined))
		referenced = referenced || ok
		if next := JoinLabels(out); ok && next != joined {
			changes = append(changes, change{id: id, labels: next})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if tagErr != nil && !referenced {
		return nil, tagErr
	}

	affected := make([]string, 0, len(changes))
	for _, c := range changes {
		if _, err := tx.ExecContext(ctx, `UPDATE Memory SET labels = ? WHERE id = ?`, c.labels, c.id); err != nil {
			return nil, fmt.Errorf("cascade labels to memory %s: %w", c.id, err)
		}
		affected = append(affected, c.id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return affected, nil
}

func (s *SQLiteStore) RenameTrigger(ctx context.Context, oldName, newName string, description *string) ([]string, error) {
	return s.rewriteTrigger(ctx, oldName, &newName, func(tx *sql.Tx) error {
		return renameTag(ctx, tx, triggerTable, oldName, newName, description)
	})
}

func (s *SQLiteStore) DeleteTrigger(ctx context.Context, name string) ([]string, error) {
	return s.rewriteTrigger(ctx, name, nil, func(tx *sql.Tx) error {
		return deleteTag(ctx, tx, triggerTable, name)
	})
}

// rewriteTrigger applies tagOp and sets the trigger of every memory using oldName to newName (nil clears it).
// As with labels, an unregistered trigger still in use cascades, and a rename onto the same name
// reports no memories.
func (s *SQLiteStore) rewriteTrigger(ctx context.Context, oldName string, newName *string, tagOp func(*sql.Tx) error) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tagErr := tagOp(tx)
	if tagErr != nil && !errors.Is(tagErr, ErrNotFound) {
		return nil, tagErr
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM Memory WHERE trigger = ? ORDER BY rowid`, oldName)
	if err != nil {
		return nil, err
	}
	affected := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		affected = append(affected, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if tagErr != nil && len(affected) == 0 {
		return nil, tagErr
	}
	if newName != nil && *newName == oldName {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return []string{}, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE Memory SET trigger = ? WHERE trigger = ?`, newName, oldName); err != nil {
		return nil, fmt.Errorf("cascade trigger: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return affected, nil
}
