package attendance

import (
	"context"
	"math"
	"time"

	"artledger/internal/roster"
	"artledger/internal/store"
)

// Status is a stored attendance status. "unmarked" is never written:
// a student missing from a day's mapping is unmarked by definition.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
)

// Valid reports whether s may be stored in a day's mapping.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent
}

// DayMarks maps student id to status for one calendar date.
type DayMarks map[roster.ID]Status

// Mark sets the status for one student, overwriting any earlier mark.
// Invalid statuses are ignored.
func (m DayMarks) Mark(id roster.ID, status Status) {
	if !status.Valid() {
		return
	}
	m[id] = status
}

// Unmark removes a student's mark, returning them to unmarked.
func (m DayMarks) Unmark(id roster.ID) {
	delete(m, id)
}

// MarkAll applies status to every student in the given (already filtered)
// subset. Students outside the subset are untouched.
func (m DayMarks) MarkAll(students []roster.Student, status Status) {
	for _, s := range students {
		m.Mark(s.ID, status)
	}
}

// Reset clears every mark. The caller is expected to have confirmed the
// action; nothing persisted is touched.
func (m DayMarks) Reset() {
	clear(m)
}

// Summary is the derived view of one day over a filtered student subset.
type Summary struct {
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	NotMarked  int     `json:"notMarked"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Summarize recomputes the day's statistics over the given subset.
// Percentage is present/total rounded to one decimal, and 0 for an empty
// subset.
func Summarize(students []roster.Student, marks DayMarks) Summary {
	sum := Summary{Total: len(students)}
	for _, s := range students {
		switch marks[s.ID] {
		case StatusPresent:
			sum.Present++
		case StatusAbsent:
			sum.Absent++
		default:
			sum.NotMarked++
		}
	}
	if sum.Total > 0 {
		sum.Percentage = math.Round(float64(sum.Present)/float64(sum.Total)*1000) / 10
	}
	return sum
}

// HistoryRecord is the write-time materialized view appended on save.
// At most one record exists per date.
type HistoryRecord struct {
	Date          string    `json:"date"`
	Timestamp     time.Time `json:"timestamp"`
	Data          DayMarks  `json:"data"`
	TotalStudents int       `json:"totalStudents"`
	PresentCount  int       `json:"presentCount"`
	AbsentCount   int       `json:"absentCount"`
}

// Ledger persists one mapping per calendar date plus the history log.
type Ledger struct {
	store store.KeyedStore
	now   func() time.Time
}

// NewLedger creates a ledger over the given store.
func NewLedger(s store.KeyedStore) *Ledger {
	return &Ledger{store: s, now: time.Now}
}

// Load returns the persisted mapping for date, defaulting to an empty
// mapping when the date has never been saved.
func (l *Ledger) Load(ctx context.Context, date string) (DayMarks, error) {
	marks := DayMarks{}
	if _, err := store.GetJSON(ctx, l.store, store.AttendanceKey(date), &marks); err != nil {
		return nil, err
	}
	if marks == nil {
		marks = DayMarks{}
	}
	return marks, nil
}

// Save persists the mapping verbatim under the date's key, then replaces
// the date's history record. Saving an empty mapping is legal and records
// an all-unmarked day. A previously saved date is overwritten wholesale.
func (l *Ledger) Save(ctx context.Context, date string, marks DayMarks, totalStudents int) error {
	if marks == nil {
		marks = DayMarks{}
	}
	if err := store.SetJSON(ctx, l.store, store.AttendanceKey(date), marks); err != nil {
		return err
	}

	rec := HistoryRecord{
		Date:          date,
		Timestamp:     l.now().UTC(),
		Data:          marks,
		TotalStudents: totalStudents,
	}
	for _, status := range marks {
		switch status {
		case StatusPresent:
			rec.PresentCount++
		case StatusAbsent:
			rec.AbsentCount++
		}
	}

	var history []HistoryRecord
	if _, err := store.GetJSON(ctx, l.store, store.KeyAttendanceHistory, &history); err != nil {
		return err
	}
	kept := history[:0]
	for _, h := range history {
		if h.Date != date {
			kept = append(kept, h)
		}
	}
	kept = append(kept, rec)
	return store.SetJSON(ctx, l.store, store.KeyAttendanceHistory, kept)
}

// History returns every saved history record in stored order.
func (l *Ledger) History(ctx context.Context) ([]HistoryRecord, error) {
	var history []HistoryRecord
	if _, err := store.GetJSON(ctx, l.store, store.KeyAttendanceHistory, &history); err != nil {
		return nil, err
	}
	if history == nil {
		history = []HistoryRecord{}
	}
	return history, nil
}
