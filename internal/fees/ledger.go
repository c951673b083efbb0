package fees

import (
	"context"
	"errors"
	"math"
	"time"

	"artledger/internal/roster"
	"artledger/internal/store"
)

// ErrInvalidAmount rejects a payment whose amount is not a positive
// finite number. Nothing is mutated when it is returned.
var ErrInvalidAmount = errors.New("payment amount must be a positive number")

// Fee status values; a pure function of the structure (see Status).
const (
	StatusPaid    = "paid"
	StatusPartial = "partial"
	StatusPending = "pending"
)

// classFees holds the per-class default totalFee assigned when a student
// has no persisted fee entry yet.
var classFees = map[string]float64{
	"Painting":    12000,
	"Sketching":   8000,
	"Sculpture":   15000,
	"Digital Art": 10000,
	"Calligraphy": 6000,
}

// defaultTotalFee applies to classes without a configured default.
const defaultTotalFee = 10000

// Structure is the fixed fee assignment for one student.
type Structure struct {
	TotalFee float64 `json:"totalFee"`
	DueDate  string  `json:"dueDate,omitempty"`
}

// Payment is immutable once created: appended, never edited or deleted.
type Payment struct {
	ID            int64   `json:"id"`
	Amount        float64 `json:"amount"`
	Date          string  `json:"date"`
	Method        string  `json:"method"`
	TransactionID string  `json:"transactionId,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// Entry is the persisted per-student fee state. PaidAmount only ever
// grows: payments add, nothing subtracts.
type Entry struct {
	FeeStructure Structure `json:"feeStructure"`
	PaidAmount   float64   `json:"paidAmount"`
	Payments     []Payment `json:"payments"`
}

// Account is the merged roster + fee view served to callers.
type Account struct {
	Student roster.Student `json:"student"`
	Entry
}

// Stats is the derived summary over a set of accounts.
type Stats struct {
	TotalCollection float64 `json:"totalCollection"`
	TotalPending    float64 `json:"totalPending"`
	PaidCount       int     `json:"paidCount"`
	PartialCount    int     `json:"partialCount"`
	PendingCount    int     `json:"pendingCount"`
}

// Ledger merges the roster with the persisted fee map and records
// payments.
type Ledger struct {
	store  store.KeyedStore
	roster *roster.Collection
	now    func() time.Time
}

// NewLedger creates a fee ledger.
func NewLedger(s store.KeyedStore, r *roster.Collection) *Ledger {
	return &Ledger{store: s, roster: r, now: time.Now}
}

// defaultEntry builds the entry for a student with no persisted fee data.
func (l *Ledger) defaultEntry(class string) Entry {
	total, ok := classFees[class]
	if !ok {
		total = defaultTotalFee
	}
	return Entry{
		FeeStructure: Structure{
			TotalFee: total,
			DueDate:  l.now().AddDate(0, 1, 0).Format("2006-01-02"),
		},
		Payments: []Payment{},
	}
}

// Load returns one account per roster student in roster order, merging in
// persisted fee entries and defaulting the rest by enrolled class.
func (l *Ledger) Load(ctx context.Context) ([]Account, error) {
	students, err := l.roster.Students(ctx)
	if err != nil {
		return nil, err
	}
	feeMap := map[roster.ID]Entry{}
	if _, err := store.GetJSON(ctx, l.store, store.KeyStudentFees, &feeMap); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(students))
	for _, s := range students {
		entry, ok := feeMap[s.ID]
		if !ok {
			entry = l.defaultEntry(s.EnrolledClass)
		}
		if entry.Payments == nil {
			entry.Payments = []Payment{}
		}
		accounts = append(accounts, Account{Student: s, Entry: entry})
	}
	return accounts, nil
}

// RecordPayment validates the amount, appends a payment to the student's
// entry, grows paidAmount, and persists the full fee map in one write.
// Overpayment past totalFee is permitted. The amount must be a positive
// finite number or ErrInvalidAmount is returned with nothing mutated.
func (l *Ledger) RecordPayment(ctx context.Context, studentID roster.ID, amount float64, method, transactionID, notes string) (Payment, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Payment{}, ErrInvalidAmount
	}

	feeMap := map[roster.ID]Entry{}
	if _, err := store.GetJSON(ctx, l.store, store.KeyStudentFees, &feeMap); err != nil {
		return Payment{}, err
	}

	entry, ok := feeMap[studentID]
	if !ok {
		class := ""
		if s, err := l.roster.Find(ctx, studentID); err != nil {
			return Payment{}, err
		} else if s != nil {
			class = s.EnrolledClass
		}
		entry = l.defaultEntry(class)
	}

	now := l.now()
	payment := Payment{
		ID:            now.UnixMilli(),
		Amount:        amount,
		Date:          now.Format("2006-01-02"),
		Method:        method,
		TransactionID: transactionID,
		Notes:         notes,
	}
	entry.Payments = append(entry.Payments, payment)
	entry.PaidAmount += amount
	feeMap[studentID] = entry

	if err := store.SetJSON(ctx, l.store, store.KeyStudentFees, feeMap); err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// Status derives the fee status: paid when paidAmount covers totalFee,
// pending when nothing is paid, partial in between.
func Status(e Entry) string {
	switch {
	case e.PaidAmount >= e.FeeStructure.TotalFee:
		return StatusPaid
	case e.PaidAmount > 0:
		return StatusPartial
	default:
		return StatusPending
	}
}

// SummaryStats recomputes collection totals over the given accounts.
// Per-student pending is clamped at zero so overpayment never produces a
// negative due.
func SummaryStats(accounts []Account) Stats {
	var stats Stats
	for _, a := range accounts {
		stats.TotalCollection += a.PaidAmount
		stats.TotalPending += math.Max(0, a.FeeStructure.TotalFee-a.PaidAmount)
		switch Status(a.Entry) {
		case StatusPaid:
			stats.PaidCount++
		case StatusPartial:
			stats.PartialCount++
		default:
			stats.PendingCount++
		}
	}
	return stats
}
