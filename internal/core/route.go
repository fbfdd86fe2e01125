package core

import (
	"context"
	"strings"

	"fieldparty/pkg/domain"
)

// RouteManager serializes every route mutation through a SessionStore.
type RouteManager struct {
	store *SessionStore[domain.Route, *domain.Route]
	opts  options
}

// NewRouteManager constructs a manager backed by docs.
func NewRouteManager(docs domain.DocumentStore, opts ...Option) *RouteManager {
	return &RouteManager{
		store: NewSessionStore[domain.Route](docs, opts...),
		opts:  buildOptions(opts),
	}
}

// StartRoute creates an open route whose first waypoint is start.
func (m *RouteManager) StartRoute(ctx context.Context, author domain.UserID, name string, start domain.Location) (domain.Route, error) {
	var out domain.Route
	err := m.opts.run(ctx, "route.start", func(ctx context.Context) error {
		if err := domain.ValidateUser("author", author); err != nil {
			return err
		}
		if strings.TrimSpace(name) == "" {
			return domain.ValidationError{Field: "name", Message: "must not be empty"}
		}
		if err := start.Validate(); err != nil {
			return err
		}
		created, err := m.store.Create(ctx, domain.NewRoute(author, name, start))
		out = created
		return err
	}, "author", author)
	return out, err
}

// AddActiveUser marks user as walking the route.
func (m *RouteManager) AddActiveUser(ctx context.Context, routeID string, user domain.UserID) (domain.Route, error) {
	return m.mutate(ctx, "route.add_active_user", routeID, domain.ValidateUser("user", user), func(r *domain.Route) error {
		return r.AddActiveUser(user)
	}, "user", user)
}

// RemoveActiveUser drops user from the active set. Absent users are not an error.
func (m *RouteManager) RemoveActiveUser(ctx context.Context, routeID string, user domain.UserID) (domain.Route, error) {
	return m.mutate(ctx, "route.remove_active_user", routeID, domain.ValidateUser("user", user), func(r *domain.Route) error {
		return r.RemoveActiveUser(user)
	}, "user", user)
}

// AddWaypoint appends a waypoint to an open route. obs may be nil.
func (m *RouteManager) AddWaypoint(ctx context.Context, routeID string, loc domain.Location, description string, obs *domain.ObservationRef) (domain.Route, error) {
	w := domain.Waypoint{Location: loc, Description: description}
	invalid := loc.Validate()
	if obs != nil {
		if invalid == nil {
			invalid = obs.Validate()
		}
		ref := *obs
		w.Observation = &ref
	}
	return m.mutate(ctx, "route.add_waypoint", routeID, invalid, func(r *domain.Route) error {
		return r.AddWaypoint(w)
	}, "location", loc.String())
}

// CompleteRoute clears the active users and freezes the route as one commit.
func (m *RouteManager) CompleteRoute(ctx context.Context, routeID string) (domain.Route, error) {
	return m.mutate(ctx, "route.complete", routeID, nil, func(r *domain.Route) error {
		return r.Complete()
	})
}

// GetRoute returns the current state of the route.
func (m *RouteManager) GetRoute(ctx context.Context, routeID string) (domain.Route, error) {
	var out domain.Route
	err := m.opts.run(ctx, "route.get", func(ctx context.Context) error {
		r, err := m.store.Read(ctx, routeID)
		out = r
		return err
	}, "route", routeID)
	return out, err
}

// ListRoutes returns every route ordered by id.
func (m *RouteManager) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	var out []domain.Route
	err := m.opts.run(ctx, "route.list", func(ctx context.Context) error {
		rs, err := m.store.List(ctx)
		out = rs
		return err
	})
	return out, err
}

// DeleteRoute removes the route. Deleting a route that does not exist is
// acknowledged; an id that names a party reports NotFound.
func (m *RouteManager) DeleteRoute(ctx context.Context, routeID string) error {
	return m.opts.run(ctx, "route.delete", func(ctx context.Context) error {
		return m.store.Delete(ctx, routeID)
	}, "route", routeID)
}

// AssertAuthorIsUser fails with Forbidden unless user authored the route.
func (m *RouteManager) AssertAuthorIsUser(ctx context.Context, routeID string, user domain.UserID) error {
	return m.opts.run(ctx, "route.assert_author", func(ctx context.Context) error {
		r, err := m.store.Read(ctx, routeID)
		if err != nil {
			return err
		}
		if r.AuthorID != user {
			return domain.ForbiddenError{Kind: domain.KindRoute, ID: r.ID, User: user, Role: "author"}
		}
		return nil
	}, "route", routeID, "user", user)
}

// mutate runs fn under the route's slot. A non-nil invalid fails the
// operation before the route is locked or loaded.
func (m *RouteManager) mutate(ctx context.Context, op, routeID string, invalid error, fn func(*domain.Route) error, attrs ...any) (domain.Route, error) {
	var out domain.Route
	err := m.opts.run(ctx, op, func(ctx context.Context) error {
		if invalid != nil {
			return invalid
		}
		r, err := m.store.Mutate(ctx, routeID, fn)
		out = r
		return err
	}, append([]any{"route", routeID}, attrs...)...)
	return out, err
}
