package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"artledger/internal/roster"
	"artledger/internal/store"
)

// ErrNoRecipients rejects a bulk notification whose recipient selection
// resolves to an empty audience. Nothing is persisted.
var ErrNoRecipients = errors.New("no recipients match the selection")

// ErrUnknownRecipientType rejects a bulk selection that is neither all
// nor class.
var ErrUnknownRecipientType = errors.New("recipient type must be all or class")

// Notification types and bulk recipient selections.
const (
	TypeIndividual = "individual"
	TypeBulk       = "bulk"

	RecipientAll   = "all"
	RecipientClass = "class"
)

// Recipient is one resolved fan-out target.
type Recipient struct {
	ID   roster.ID `json:"id"`
	Name string    `json:"name"`
}

// Notification is immutable after creation except for hard deletion.
// Bulk notifications carry the recipient list resolved at send time.
type Notification struct {
	ID             int64       `json:"id"`
	Type           string      `json:"type"`
	Title          string      `json:"title"`
	Message        string      `json:"message"`
	RecipientID    roster.ID   `json:"recipientId,omitempty"`
	RecipientName  string      `json:"recipientName,omitempty"`
	RecipientType  string      `json:"recipientType,omitempty"`
	ClassName      string      `json:"className,omitempty"`
	Recipients     []Recipient `json:"recipients,omitempty"`
	RecipientCount int         `json:"recipientCount,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	DeliveredAt    *time.Time  `json:"deliveredAt,omitempty"`
}

// Log is the append-only, most-recent-first notification store.
type Log struct {
	store  store.KeyedStore
	roster *roster.Collection
	now    func() time.Time
}

// NewLog creates a notification log.
func NewLog(s store.KeyedStore, r *roster.Collection) *Log {
	return &Log{store: s, roster: r, now: time.Now}
}

func (l *Log) load(ctx context.Context) ([]Notification, error) {
	var notifications []Notification
	if _, err := store.GetJSON(ctx, l.store, store.KeyNotifications, &notifications); err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	return notifications, nil
}

// nextID assigns a creation-order id. Ids are creation timestamps in
// milliseconds, bumped past the head entry when two sends land within
// the same millisecond.
func (l *Log) nextID(head []Notification) int64 {
	id := l.now().UnixMilli()
	if len(head) > 0 && head[0].ID >= id {
		id = head[0].ID + 1
	}
	return id
}

// ResolveRecipients expands a bulk selection into concrete targets: "all"
// returns every roster student, "class" the students whose enrolled class
// equals className exactly (case-sensitive). An empty result is
// ErrNoRecipients.
func (l *Log) ResolveRecipients(ctx context.Context, recipientType, className string) ([]Recipient, error) {
	if recipientType != RecipientAll && recipientType != RecipientClass {
		return nil, ErrUnknownRecipientType
	}
	students, err := l.roster.Students(ctx)
	if err != nil {
		return nil, err
	}
	recipients := []Recipient{}
	for _, s := range students {
		if recipientType == RecipientClass && s.EnrolledClass != className {
			continue
		}
		recipients = append(recipients, Recipient{ID: s.ID, Name: s.Name})
	}
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	return recipients, nil
}

// SendIndividual validates and prepends an individual notification.
func (l *Log) SendIndividual(ctx context.Context, studentID roster.ID, title, message string) (Notification, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return Notification{}, errors.New("title and message required")
	}
	if studentID == "" {
		return Notification{}, errors.New("student id required")
	}

	name := ""
	if s, err := l.roster.Find(ctx, studentID); err != nil {
		return Notification{}, err
	} else if s != nil {
		name = s.Name
	}

	notifications, err := l.load(ctx)
	if err != nil {
		return Notification{}, err
	}
	n := Notification{
		ID:            l.nextID(notifications),
		Type:          TypeIndividual,
		Title:         title,
		Message:       message,
		RecipientID:   studentID,
		RecipientName: name,
		CreatedAt:     l.now().UTC(),
	}
	return n, l.prepend(ctx, notifications, n)
}

// SendBulk resolves the recipient selection, then validates and prepends a
// bulk notification. An empty audience is rejected before persistence.
func (l *Log) SendBulk(ctx context.Context, recipientType, className, title, message string) (Notification, error) {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(message) == "" {
		return Notification{}, errors.New("title and message required")
	}

	recipients, err := l.ResolveRecipients(ctx, recipientType, className)
	if err != nil {
		return Notification{}, err
	}

	notifications, err := l.load(ctx)
	if err != nil {
		return Notification{}, err
	}
	n := Notification{
		ID:             l.nextID(notifications),
		Type:           TypeBulk,
		Title:          title,
		Message:        message,
		RecipientType:  recipientType,
		ClassName:      className,
		Recipients:     recipients,
		RecipientCount: len(recipients),
		CreatedAt:      l.now().UTC(),
	}
	return n, l.prepend(ctx, notifications, n)
}

func (l *Log) prepend(ctx context.Context, existing []Notification, n Notification) error {
	updated := make([]Notification, 0, len(existing)+1)
	updated = append(updated, n)
	updated = append(updated, existing...)
	return store.SetJSON(ctx, l.store, store.KeyNotifications, updated)
}

// Delete removes a notification by id. An absent id is a silent no-op so
// repeated deletes stay idempotent.
func (l *Log) Delete(ctx context.Context, id int64) error {
	notifications, err := l.load(ctx)
	if err != nil {
		return err
	}
	kept := notifications[:0]
	for _, n := range notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(notifications) {
		return nil
	}
	return store.SetJSON(ctx, l.store, store.KeyNotifications, kept)
}

// List returns notifications in log order (most recent first), optionally
// filtered by type. An empty or "all" filter returns everything.
func (l *Log) List(ctx context.Context, filter string) ([]Notification, error) {
	notifications, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	if filter == "" || filter == "all" {
		return notifications, nil
	}
	filtered := []Notification{}
	for _, n := range notifications {
		if n.Type == filter {
			filtered = append(filtered, n)
		}
	}
	return filtered, nil
}

// MarkDelivered stamps the delivery time on a notification. An absent id
// is a no-op; the notification may have been deleted since it was queued.
func (l *Log) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	notifications, err := l.load(ctx)
	if err != nil {
		return err
	}
	for i := range notifications {
		if notifications[i].ID == id {
			t := at.UTC()
			notifications[i].DeliveredAt = &t
			return store.SetJSON(ctx, l.store, store.KeyNotifications, notifications)
		}
	}
	return nil
}
