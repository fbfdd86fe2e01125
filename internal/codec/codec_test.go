package codec

import (
	"bytes"
	"testing"
	"time"

	"fieldparty/pkg/domain"
)

func TestNewSelectsCodec(t *testing.T) {
	for _, name := range []Name{"", JSON, CBOR} {
		c, err := New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		want := name
		if want == "" {
			want = JSON
		}
		if c.Name() != want {
			t.Fatalf("New(%q).Name() = %q, want %q", name, c.Name(), want)
		}
	}
	if _, err := New("xml"); err == nil {
		t.Fatalf("expected error for unknown codec")
	}
}

func TestCodecsPreserveRoute(t *testing.T) {
	stamp := time.Date(2026, 3, 4, 5, 6, 7, 890, time.UTC)
	route := domain.NewRoute("u1", "oaks", domain.Location{Latitude: 1.5, Longitude: -2})
	route.ID = "r1"
	route.Version = 3
	route.UpdatedAt = stamp
	route.Waypoints = append(route.Waypoints, domain.Waypoint{
		Location:    domain.Location{Latitude: 1, Longitude: 1},
		Description: "tree",
		Observation: &domain.ObservationRef{ID: "obs-1", Type: "organism"},
	})

	for _, name := range Names() {
		c, _ := New(name)
		data, err := c.Marshal(route)
		if err != nil {
			t.Fatalf("%s marshal: %v", name, err)
		}
		var got domain.Route
		if err := c.Unmarshal(data, &got); err != nil {
			t.Fatalf("%s unmarshal: %v", name, err)
		}
		if !got.UpdatedAt.Equal(stamp) {
			t.Fatalf("%s: updated_at = %v, want %v", name, got.UpdatedAt, stamp)
		}
		if len(got.Waypoints) != 2 || got.Waypoints[1].Observation == nil || got.Waypoints[1].Observation.ID != "obs-1" {
			t.Fatalf("%s: waypoints not preserved: %+v", name, got.Waypoints)
		}
		if !got.ActiveUsers.Contains("u1") || got.Version != 3 {
			t.Fatalf("%s: unexpected route %+v", name, got)
		}
	}
}

func TestCBORIsDeterministic(t *testing.T) {
	c, _ := New(CBOR)
	party := domain.NewParty("leader")
	party.Join("b")
	party.Join("a")
	first, err := c.Marshal(party)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, _ := c.Marshal(party)
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical encodings")
	}
}
