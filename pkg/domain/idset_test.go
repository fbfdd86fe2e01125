package domain

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestIDSetAddRemove(t *testing.T) {
	s := NewIDSet("c", "a", "b", "a")
	if got := s.IDs(); !slices.Equal(got, []UserID{"a", "b", "c"}) {
		t.Fatalf("NewIDSet = %v, want sorted unique", got)
	}
	if s.Add("b") {
		t.Fatalf("Add of existing member reported a change")
	}
	if !s.Add("aa") || !s.Contains("aa") {
		t.Fatalf("Add of new member failed: %v", s)
	}
	if !s.Remove("a") || s.Contains("a") {
		t.Fatalf("Remove failed: %v", s)
	}
	if s.Remove("zz") {
		t.Fatalf("Remove of absent member reported a change")
	}
	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3", s.Len())
	}
}

func TestIDSetIDsIsACopy(t *testing.T) {
	s := NewIDSet("a", "b")
	ids := s.IDs()
	ids[0] = "mutated"
	if !s.Contains("a") {
		t.Fatalf("IDs leaked the backing array")
	}
}

func TestIDSetNormalizeRepairsDecodedSets(t *testing.T) {
	var s IDSet
	if err := json.Unmarshal([]byte(`["b","a","b"]`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s = s.normalize()
	if got := s.IDs(); !slices.Equal(got, []UserID{"a", "b"}) {
		t.Fatalf("normalize = %v", got)
	}
	sorted := NewIDSet("a", "b")
	if n := sorted.normalize(); &n[0] != &sorted[0] {
		t.Fatalf("normalize copied an already valid set")
	}
}
