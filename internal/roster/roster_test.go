package roster

import (
	"context"
	"encoding/json"
	"testing"

	"artledger/internal/store"
)

func TestIDUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want ID
	}{
		{name: "string id", in: `"s-17"`, want: "s-17"},
		{name: "numeric id", in: `1`, want: "1"},
		{name: "timestamp id", in: `1736467200000`, want: "1736467200000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if id != tt.want {
				t.Errorf("Unmarshal(%s) = %q, want %q", tt.in, id, tt.want)
			}
		})
	}
}

func seedRoster(t *testing.T) *Collection {
	t.Helper()
	m := store.NewMemory()
	_ = m.Set(context.Background(), store.KeyStudents, json.RawMessage(`[
		{"id":1,"name":"Asha Verma","rollNumber":"R-01","enrolledClass":"Painting"},
		{"id":"2","name":"Bilal Khan","rollNumber":"R-02","enrolledClass":"Sketching"},
		{"id":3,"name":"Chitra Rao","rollNumber":"R-03","enrolledClass":"Painting"}
	]`))
	return NewCollection(m)
}

func TestStudentsPreservesOrder(t *testing.T) {
	c := seedRoster(t)
	students, err := c.Students(context.Background())
	if err != nil {
		t.Fatalf("Students() error = %v", err)
	}
	if len(students) != 3 {
		t.Fatalf("Students() len = %d, want 3", len(students))
	}
	want := []ID{"1", "2", "3"}
	for i, s := range students {
		if s.ID != want[i] {
			t.Errorf("Students()[%d].ID = %q, want %q", i, s.ID, want[i])
		}
	}
}

func TestStudentsEmptyStore(t *testing.T) {
	c := NewCollection(store.NewMemory())
	students, err := c.Students(context.Background())
	if err != nil {
		t.Fatalf("Students() error = %v", err)
	}
	if students == nil || len(students) != 0 {
		t.Errorf("Students() = %v, want empty slice", students)
	}
}

func TestFilter(t *testing.T) {
	students := []Student{
		{ID: "1", Name: "Asha Verma", RollNumber: "R-01", EnrolledClass: "Painting"},
		{ID: "2", Name: "Bilal Khan", RollNumber: "R-02", EnrolledClass: "Sketching"},
		{ID: "3", Name: "", RollNumber: "", EnrolledClass: "Painting"},
	}

	tests := []struct {
		name   string
		class  string
		search string
		want   []ID
	}{
		{name: "no filters", class: "", search: "", want: []ID{"1", "2", "3"}},
		{name: "all class", class: "all", search: "", want: []ID{"1", "2", "3"}},
		{name: "class only", class: "Painting", search: "", want: []ID{"1", "3"}},
		{name: "search name case-insensitive", class: "", search: "ASHA", want: []ID{"1"}},
		{name: "search roll number", class: "", search: "r-02", want: []ID{"2"}},
		{name: "class AND search", class: "Painting", search: "verma", want: []ID{"1"}},
		{name: "missing fields never match", class: "", search: "khan", want: []ID{"2"}},
		{name: "no match", class: "Sculpture", search: "", want: []ID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(students, MatchesClass(tt.class), MatchesSearch(tt.search))
			if len(got) != len(tt.want) {
				t.Fatalf("Filter() len = %d, want %d", len(got), len(tt.want))
			}
			for i, s := range got {
				if s.ID != tt.want[i] {
					t.Errorf("Filter()[%d].ID = %q, want %q", i, s.ID, tt.want[i])
				}
			}
		})
	}
}

func TestFind(t *testing.T) {
	c := seedRoster(t)
	ctx := context.Background()

	s, err := c.Find(ctx, "2")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if s == nil || s.Name != "Bilal Khan" {
		t.Errorf("Find(2) = %+v, want Bilal Khan", s)
	}

	absent, err := c.Find(ctx, "99")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if absent != nil {
		t.Errorf("Find(99) = %+v, want nil", absent)
	}
}
