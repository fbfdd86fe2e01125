package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"fieldparty/internal/core"
	"fieldparty/pkg/domain"

	"golang.org/x/sync/errgroup"
)

func TestRouteLifecycle(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()

	route, err := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{Latitude: 0, Longitude: 0})
	if err != nil {
		t.Fatalf("start route: %v", err)
	}
	if len(route.Waypoints) != 1 || route.Waypoints[0].Description != domain.StartPointDescription {
		t.Fatalf("expected start waypoint, got %+v", route.Waypoints)
	}
	if !route.ActiveUsers.Contains("U1") {
		t.Fatalf("author should be active")
	}

	if _, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{Latitude: 1, Longitude: 1}, "tree", nil); err != nil {
		t.Fatalf("add waypoint: %v", err)
	}
	done, err := svc.Routes.CompleteRoute(ctx, route.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(done.Waypoints) != 2 {
		t.Fatalf("expected 2 waypoints, got %d", len(done.Waypoints))
	}
	if !done.Completed {
		t.Fatalf("expected completed route")
	}
	if done.ActiveUsers.Len() != 0 {
		t.Fatalf("expected no active users, got %v", done.ActiveUsers)
	}

	_, err = svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{Latitude: 2, Longitude: 2}, "rock", nil)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state after completion, got %v", err)
	}
}

func TestRouteFrozenAfterCompletion(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})
	if _, err := svc.Routes.AddActiveUser(ctx, route.ID, "U2"); err != nil {
		t.Fatalf("add active user: %v", err)
	}
	done, err := svc.Routes.CompleteRoute(ctx, route.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	checks := map[string]func() error{
		"add_active_user": func() error {
			_, err := svc.Routes.AddActiveUser(ctx, route.ID, "U3")
			return err
		},
		"remove_active_user": func() error {
			_, err := svc.Routes.RemoveActiveUser(ctx, route.ID, "U2")
			return err
		},
		"add_waypoint": func() error {
			_, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{}, "x", nil)
			return err
		},
		"complete_again": func() error {
			_, err := svc.Routes.CompleteRoute(ctx, route.ID)
			return err
		},
	}
	for name, fn := range checks {
		if err := fn(); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("%s: expected invalid state, got %v", name, err)
		}
	}

	got, _ := svc.Routes.GetRoute(ctx, route.ID)
	if got.Version != done.Version {
		t.Fatalf("frozen route changed version from %d to %d", done.Version, got.Version)
	}
	if got.ActiveUsers.Len() != 0 {
		t.Fatalf("expected empty active users, got %v", got.ActiveUsers)
	}
}

func TestRouteActiveUsers(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})

	added, err := svc.Routes.AddActiveUser(ctx, route.ID, "U2")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ActiveUsers.Len() != 2 {
		t.Fatalf("expected 2 active users, got %v", added.ActiveUsers)
	}
	removed, err := svc.Routes.RemoveActiveUser(ctx, route.ID, "U2")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.ActiveUsers.Contains("U2") {
		t.Fatalf("U2 should be gone")
	}
	absent, err := svc.Routes.RemoveActiveUser(ctx, route.ID, "nobody")
	if err != nil {
		t.Fatalf("remove absent user: %v", err)
	}
	if absent.Version != removed.Version {
		t.Fatalf("removing an absent user bumped version")
	}
}

func TestRouteWaypointOrderUnderConcurrency(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})

	// Sequential appends from one caller keep their order.
	for i := 1; i <= 3; i++ {
		loc := domain.Location{Latitude: float64(i), Longitude: float64(i)}
		if _, err := svc.Routes.AddWaypoint(ctx, route.ID, loc, fmt.Sprintf("wp-%d", i), nil); err != nil {
			t.Fatalf("add waypoint %d: %v", i, err)
		}
	}

	const n = 24
	var g errgroup.Group
	for i := 0; i < n; i++ {
		desc := fmt.Sprintf("concurrent-%d", i)
		g.Go(func() error {
			_, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{Latitude: 10, Longitude: 10}, desc, nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent waypoints: %v", err)
	}

	got, _ := svc.Routes.GetRoute(ctx, route.ID)
	if len(got.Waypoints) != 1+3+n {
		t.Fatalf("expected %d waypoints, got %d", 1+3+n, len(got.Waypoints))
	}
	for i := 1; i <= 3; i++ {
		if want := fmt.Sprintf("wp-%d", i); got.Waypoints[i].Description != want {
			t.Fatalf("waypoint %d: expected %s, got %s", i, want, got.Waypoints[i].Description)
		}
	}
	if got.Version != int64(3+n) {
		t.Fatalf("expected version %d, got %d", 3+n, got.Version)
	}
}

func TestRouteCompleteRacesWithJoins(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		user := domain.UserID(fmt.Sprintf("walker-%d", i))
		g.Go(func() error {
			_, err := svc.Routes.AddActiveUser(ctx, route.ID, user)
			if errors.Is(err, domain.ErrInvalidState) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		_, err := svc.Routes.CompleteRoute(ctx, route.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		t.Fatalf("race: %v", err)
	}

	got, _ := svc.Routes.GetRoute(ctx, route.ID)
	if !got.Completed || got.ActiveUsers.Len() != 0 {
		t.Fatalf("expected completed route with no active users, got completed=%v active=%v", got.Completed, got.ActiveUsers)
	}
}

func TestRouteWaypointObservation(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})

	ref := domain.ObservationRef{ID: "obs-1", Type: "plant"}
	got, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{Latitude: 3, Longitude: 4}, "fern", &ref)
	if err != nil {
		t.Fatalf("add waypoint: %v", err)
	}
	ref.ID = "mutated"
	wp := got.Waypoints[1]
	if wp.Observation == nil || wp.Observation.ID != "obs-1" {
		t.Fatalf("expected observation copy, got %+v", wp.Observation)
	}

	stored, _ := svc.Routes.GetRoute(ctx, route.ID)
	if stored.Waypoints[1].Observation == nil || stored.Waypoints[1].Observation.Type != "plant" {
		t.Fatalf("observation not persisted: %+v", stored.Waypoints[1])
	}
}

func TestRouteValidation(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()

	cases := []struct {
		name   string
		author domain.UserID
		title  string
		loc    domain.Location
	}{
		{"empty author", "", "R", domain.Location{}},
		{"empty name", "U1", " ", domain.Location{}},
		{"latitude", "U1", "R", domain.Location{Latitude: 91}},
		{"longitude", "U1", "R", domain.Location{Longitude: -181}},
	}
	for _, tc := range cases {
		if _, err := svc.Routes.StartRoute(ctx, tc.author, tc.title, tc.loc); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
	}

	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})
	if _, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{Latitude: -100}, "bad", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for waypoint, got %v", err)
	}
	if _, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{}, "bad ref", &domain.ObservationRef{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty observation, got %v", err)
	}
	if _, err := svc.Routes.AddActiveUser(ctx, route.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty user, got %v", err)
	}
}

func TestRouteAuthorAndDelete(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})

	if err := svc.Routes.AssertAuthorIsUser(ctx, route.ID, "U1"); err != nil {
		t.Fatalf("assert author: %v", err)
	}
	if err := svc.Routes.AssertAuthorIsUser(ctx, route.ID, "U2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := svc.Routes.AssertAuthorIsUser(ctx, "missing", "U1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.Routes.DeleteRoute(ctx, route.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Routes.GetRoute(ctx, route.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{}, "x", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found mutating deleted route, got %v", err)
	}
}

func TestDeleteRouteTwiceIsAcknowledged(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, err := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.Routes.DeleteRoute(ctx, route.ID); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := svc.Routes.DeleteRoute(ctx, route.ID); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if err := svc.Routes.DeleteRoute(ctx, "never-existed"); err != nil {
		t.Fatalf("delete of unknown id: %v", err)
	}
	routes, err := svc.Routes.ListRoutes(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(routes) != 0 {
		t.Fatalf("expected no routes, got %d", len(routes))
	}
}

func TestRouteArgumentsCheckedBeforeLoad(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()

	if _, err := svc.Routes.AddActiveUser(ctx, "missing", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error joining missing route, got %v", err)
	}
	if _, err := svc.Routes.RemoveActiveUser(ctx, "missing", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error leaving missing route, got %v", err)
	}
	if _, err := svc.Routes.AddWaypoint(ctx, "missing", domain.Location{Longitude: 200}, "bad", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for location on missing route, got %v", err)
	}
	if _, err := svc.Routes.AddWaypoint(ctx, "missing", domain.Location{}, "bad ref", &domain.ObservationRef{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for observation on missing route, got %v", err)
	}
	if _, err := svc.Routes.AddWaypoint(ctx, "missing", domain.Location{}, "ok", nil); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for valid waypoint on missing route, got %v", err)
	}
}

func TestRouteVersionsIncrease(t *testing.T) {
	svc := core.NewInMemoryService()
	ctx := context.Background()
	route, _ := svc.Routes.StartRoute(ctx, "U1", "R", domain.Location{})

	last := route.Version
	for i := 0; i < 5; i++ {
		if _, err := svc.Routes.AddWaypoint(ctx, route.ID, domain.Location{}, "step", nil); err != nil {
			t.Fatalf("add waypoint: %v", err)
		}
		got, err := svc.Routes.GetRoute(ctx, route.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Version <= last {
			t.Fatalf("version did not increase: %d after %d", got.Version, last)
		}
		last = got.Version
	}
	routes, err := svc.Routes.ListRoutes(ctx)
	if err != nil || len(routes) != 1 {
		t.Fatalf("list routes: %v %d", err, len(routes))
	}
}
