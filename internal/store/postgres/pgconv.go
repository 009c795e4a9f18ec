package postgres

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sheetsync/internal/core"
)

// toPgText maps nil to SQL NULL.
func toPgText(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func fromPgText(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// toPgDate stores the calendar date at UTC midnight.
func toPgDate(d *core.CalendarDate) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Midnight(), Valid: true}
}

func fromPgDate(d pgtype.Date) *core.CalendarDate {
	if !d.Valid {
		return nil
	}
	y, m, day := d.Time.Date()
	cd, ok := core.NewCalendarDate(y, int(m), day)
	if !ok {
		return nil
	}
	return &cd
}

func fromPgTimestamptz(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}
