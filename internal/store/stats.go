package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath            string       `json:"db_path" yaml:"db_path"`
	DBSizeBytes       int64        `json:"db_size_bytes" yaml:"db_size_bytes"`
	TotalMemories     int          `json:"total_memories" yaml:"total_memories"`
	EmbeddedMemories  int          `json:"embedded_memories" yaml:"embedded_memories"`
	TriggeredMemories int          `json:"triggered_memories" yaml:"triggered_memories"`
	Labels            []LabelStats `json:"labels" yaml:"labels"`
	Triggers          int          `json:"triggers" yaml:"triggers"`
}

// LabelStats holds per-label counts.
type LabelStats struct {
	Label string `json:"label" yaml:"label"`
	Count int    `json:"count" yaml:"count"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Memory`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Memory WHERE embedding IS NOT NULL`).Scan(&st.EmbeddedMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Memory WHERE trigger IS NOT NULL`).Scan(&st.TriggeredMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM Triggers`).Scan(&st.Triggers)

	labels, err := s.Labels(ctx)
	if err != nil {
		return st, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT labels FROM Memory WHERE labels != ''`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return st, err
		}
		for _, l := range SplitLabels(joined) {
			counts[l]++
		}
	}
	for _, l := range labels {
		st.Labels = append(st.Labels, LabelStats{Label: l.Name, Count: counts[l.Name]})
	}
	return st, rows.Err()
}
