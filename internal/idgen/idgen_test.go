package idgen

import (
	"regexp"
	"sort"
	"strings"
	"testing"
)

func TestNew_LengthAndPrefix(t *testing.T) {
	for _, prefix := range []Prefix{Organization, CCR, Board, WorkItem, Dependency, Schedule} {
		id, err := New(prefix)
		if err != nil {
			t.Fatalf("New(%q) error: %v", prefix, err)
		}
		if !strings.HasPrefix(id, string(prefix)) {
			t.Errorf("New(%q) = %q, missing prefix", prefix, id)
		}
		if want := len(prefix) + Length; len(id) != want {
			t.Errorf("New(%q) length = %d, want %d", prefix, len(id), want)
		}
	}
}

func TestNew_Charset(t *testing.T) {
	pattern := regexp.MustCompile(`^sch-[a-zA-Z0-9]+$`)
	for i := 0; i < 100; i++ {
		id, err := New(Schedule)
		if err != nil {
			t.Fatalf("New() error on iteration %d: %v", i, err)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("New() = %q, does not match expected charset pattern", id)
		}
	}
}

func TestNew_Uniqueness(t *testing.T) {
	const count = 10_000
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		id, err := New(WorkItem)
		if err != nil {
			t.Fatalf("New() error on iteration %d: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id after %d iterations: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestEventID_Sortable(t *testing.T) {
	ids := make([]string, 50)
	for i := range ids {
		id, err := EventID()
		if err != nil {
			t.Fatalf("EventID() error: %v", err)
		}
		ids[i] = id
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("EventID values are not in creation order: %v", ids)
	}
}
