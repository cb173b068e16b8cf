package session

import (
	"context"
	"time"
)

// Recency buckets, relative to the time List is called.
const (
	PeriodToday     = "Today"
	PeriodThisWeek  = "ThisWeek"
	PeriodThisMonth = "ThisMonth"
	PeriodThisYear  = "ThisYear"
	PeriodEarlier   = "Earlier"
)

// Summary is one row of List.
type Summary struct {
	SessionID   string    `json:"session_id" yaml:"session_id"`
	DisplayName string    `json:"session_name" yaml:"session_name"`
	Period      string    `json:"consultation_period" yaml:"consultation_period"`
	CreateTime  string    `json:"create_time" yaml:"create_time"`
	CreatedAt   time.Time `json:"-" yaml:"-"`
}

// List returns live sessions newest first, bucketed relative to now.
func (s *LocalStore) List(ctx context.Context, now time.Time) ([]Summary, error) {
	all, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(all))
	for _, sess := range all {
		created := sess.CreatedAt.In(now.Location())
		out = append(out, Summary{
			SessionID:   sess.SessionID,
			DisplayName: DisplayName(sess.SessionName, sess.SessionID),
			Period:      Period(created, now),
			CreateTime:  created.Format("2006-01-02 15:04"),
			CreatedAt:   created,
		})
	}
	return out, nil
}

// DisplayName is the session name followed by the first four characters of its id.
func DisplayName(name, id string) string {
	short := id
	if len(short) > 4 {
		short = short[:4]
	}
	return name + ": " + short
}

// Period buckets created relative to now. Weeks start on Monday.
func Period(created, now time.Time) string {
	day := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	}
	today := day(now)
	created = day(created.In(now.Location()))

	offset := (int(now.Weekday()) + 6) % 7
	startOfWeek := today.AddDate(0, 0, -offset)
	startOfMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, now.Location())
	startOfYear := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, now.Location())

	switch {
	case created.Equal(today):
		return PeriodToday
	case !created.Before(startOfWeek):
		return PeriodThisWeek
	case !created.Before(startOfMonth):
		return PeriodThisMonth
	case !created.Before(startOfYear):
		return PeriodThisYear
	default:
		return PeriodEarlier
	}
}
