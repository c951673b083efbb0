package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"artledger/internal/store"
)

// ID is a student identifier. The enrollment flow that created the
// persisted records stored ids as raw numbers (creation timestamps), so
// both numeric and string forms must decode. Writes normalize to strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(b)
	return nil
}

// Student is a roster record. Owned by the enrollment flow; the ledgers
// treat it as a read-only foreign reference.
type Student struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	RollNumber    string `json:"rollNumber"`
	EnrolledClass string `json:"enrolledClass"`
	Phone         string `json:"phone,omitempty"`
	JoinDate      string `json:"joinDate,omitempty"`
}

// Enrollment is the external enrollment record, consumed read-only.
type Enrollment struct {
	StudentID      ID     `json:"studentId"`
	StudentName    string `json:"studentName"`
	ClassName      string `json:"className"`
	Status         string `json:"status"`
	EnrollmentDate string `json:"enrollmentDate"`
}

// Collection loads roster records wholesale and filters them in memory.
type Collection struct {
	store store.KeyedStore
}

// NewCollection creates a collection over the given store.
func NewCollection(s store.KeyedStore) *Collection {
	return &Collection{store: s}
}

// Students returns all roster records in stored order. An absent entry
// yields an empty slice, not an error.
func (c *Collection) Students(ctx context.Context) ([]Student, error) {
	var students []Student
	if _, err := store.GetJSON(ctx, c.store, store.KeyStudents, &students); err != nil {
		return nil, err
	}
	if students == nil {
		students = []Student{}
	}
	return students, nil
}

// Enrollments returns the external enrollment records in stored order.
func (c *Collection) Enrollments(ctx context.Context) ([]Enrollment, error) {
	var enrollments []Enrollment
	if _, err := store.GetJSON(ctx, c.store, store.KeyEnrollments, &enrollments); err != nil {
		return nil, err
	}
	if enrollments == nil {
		enrollments = []Enrollment{}
	}
	return enrollments, nil
}

// Find returns the roster record with the given id, or nil when absent.
func (c *Collection) Find(ctx context.Context, id ID) (*Student, error) {
	students, err := c.Students(ctx)
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].ID == id {
			return &students[i], nil
		}
	}
	return nil, nil
}

// Predicate is one independent filter condition over a student record.
// Conditions compose with AND.
type Predicate func(Student) bool

// MatchesClass keeps students enrolled in the given class. An empty or
// "all" class keeps everything.
func MatchesClass(class string) Predicate {
	return func(s Student) bool {
		if class == "" || class == "all" {
			return true
		}
		return s.EnrolledClass == class
	}
}

// MatchesSearch keeps students whose name or roll number contains the
// query, case-insensitively. A record with an empty field simply does not
// match; an empty query keeps everything.
func MatchesSearch(query string) Predicate {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(s Student) bool {
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.RollNumber), q)
	}
}

// Filter returns the students matching every predicate, preserving order.
func Filter(students []Student, preds ...Predicate) []Student {
	out := []Student{}
	for _, s := range students {
		keep := true
		for _, p := range preds {
			if !p(s) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}
