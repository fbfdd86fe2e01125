package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Session carries the bookkeeping shared by every collaborative session.
// Version is the optimistic-concurrency token: 0 on create, +1 per applied mutation.
type Session struct {
	ID        string    `json:"id" cbor:"id"`
	Version   int64     `json:"version" cbor:"version"`
	CreatedAt time.Time `json:"created_at" cbor:"created_at"`
	UpdatedAt time.Time `json:"updated_at" cbor:"updated_at"`
}

// Meta exposes the shared bookkeeping to generic storage code.
func (s *Session) Meta() *Session { return s }

// Versioned is implemented by pointers to session types.
type Versioned interface {
	Meta() *Session
	Kind() Kind
	// Normalize repairs decoded state so invariants hold before a transform runs.
	Normalize()
}

// Location is a point on the map in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude" cbor:"latitude"`
	Longitude float64 `json:"longitude" cbor:"longitude"`
}

// Validate rejects coordinates outside the WGS84 range.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || l.Latitude < -90 || l.Latitude > 90 {
		return ValidationError{Field: "latitude", Message: fmt.Sprintf("%v out of range [-90, 90]", l.Latitude)}
	}
	if math.IsNaN(l.Longitude) || l.Longitude < -180 || l.Longitude > 180 {
		return ValidationError{Field: "longitude", Message: fmt.Sprintf("%v out of range [-180, 180]", l.Longitude)}
	}
	return nil
}

func (l Location) String() string {
	return fmt.Sprintf("(%g, %g)", l.Latitude, l.Longitude)
}

// ObservationRef points at an observation owned by another system. It is copied
// by value into sessions and never dereferenced here.
type ObservationRef struct {
	ID   string `json:"id" cbor:"id"`
	Type string `json:"type,omitempty" cbor:"type,omitempty"`
}

// Validate requires a non-empty id.
func (o ObservationRef) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return ValidationError{Field: "observation.id", Message: "must not be empty"}
	}
	return nil
}

// ValidateUser rejects blank user ids.
func ValidateUser(field string, id UserID) error {
	if strings.TrimSpace(string(id)) == "" {
		return ValidationError{Field: field, Message: "must not be empty"}
	}
	return nil
}

// Party is a leader-created group that accumulates shared observations.
type Party struct {
	Session
	LeaderID    UserID           `json:"leader_id" cbor:"leader_id"`
	Members     IDSet            `json:"members" cbor:"members"`
	SharedItems []ObservationRef `json:"shared_items" cbor:"shared_items"`
}

// Kind implements Versioned.
func (p *Party) Kind() Kind { return KindParty }

// Normalize implements Versioned.
func (p *Party) Normalize() {
	p.Members = p.Members.normalize()
	if p.LeaderID != "" {
		p.Members.Add(p.LeaderID)
	}
	if p.SharedItems == nil {
		p.SharedItems = []ObservationRef{}
	}
}

// NewParty builds an unsaved party whose only member is the leader.
func NewParty(leader UserID) Party {
	return Party{
		LeaderID:    leader,
		Members:     NewIDSet(leader),
		SharedItems: []ObservationRef{},
	}
}

// Join adds user to the members. Joining twice is a no-op.
func (p *Party) Join(user UserID) {
	p.Members.Add(user)
}

// Leave removes user from the members. The leader cannot leave.
func (p *Party) Leave(user UserID) error {
	if user == p.LeaderID {
		return InvalidStateError{Kind: KindParty, ID: p.ID, Reason: "the leader cannot leave the party"}
	}
	p.Members.Remove(user)
	return nil
}

// Share appends ref to the shared items. Duplicates are kept.
func (p *Party) Share(ref ObservationRef) {
	p.SharedItems = append(p.SharedItems, ref)
}

// StartPointDescription labels waypoint 0 of every route.
const StartPointDescription = "Start point"

// Waypoint is one stop along a route.
type Waypoint struct {
	Location    Location        `json:"location" cbor:"location"`
	Description string          `json:"description" cbor:"description"`
	Observation *ObservationRef `json:"observation,omitempty" cbor:"observation,omitempty"`
}

// Route is an author-created walk with ordered waypoints and a set of active users.
// Once Completed is true the route is frozen.
type Route struct {
	Session
	AuthorID    UserID     `json:"author_id" cbor:"author_id"`
	Name        string     `json:"name" cbor:"name"`
	Waypoints   []Waypoint `json:"waypoints" cbor:"waypoints"`
	ActiveUsers IDSet      `json:"active_users" cbor:"active_users"`
	Completed   bool       `json:"completed" cbor:"completed"`
}

// Kind implements Versioned.
func (r *Route) Kind() Kind { return KindRoute }

// Normalize implements Versioned.
func (r *Route) Normalize() {
	r.ActiveUsers = r.ActiveUsers.normalize()
	if r.Waypoints == nil {
		r.Waypoints = []Waypoint{}
	}
	if r.Completed {
		r.ActiveUsers = IDSet{}
	}
	if r.ActiveUsers == nil {
		r.ActiveUsers = IDSet{}
	}
}

// NewRoute builds an unsaved open route starting at start with the author active.
func NewRoute(author UserID, name string, start Location) Route {
	return Route{
		AuthorID:    author,
		Name:        name,
		Waypoints:   []Waypoint{{Location: start, Description: StartPointDescription}},
		ActiveUsers: NewIDSet(author),
	}
}

func (r *Route) ensureOpen() error {
	if r.Completed {
		return InvalidStateError{Kind: KindRoute, ID: r.ID, Reason: "route is completed"}
	}
	return nil
}

// AddActiveUser marks user as walking the route.
func (r *Route) AddActiveUser(user UserID) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	r.ActiveUsers.Add(user)
	return nil
}

// RemoveActiveUser drops user from the active set; absent users are ignored.
func (r *Route) RemoveActiveUser(user UserID) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	r.ActiveUsers.Remove(user)
	return nil
}

// AddWaypoint appends w to the route.
func (r *Route) AddWaypoint(w Waypoint) error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	r.Waypoints = append(r.Waypoints, w)
	return nil
}

// Complete clears the active users and freezes the route in one step.
func (r *Route) Complete() error {
	if err := r.ensureOpen(); err != nil {
		return err
	}
	r.ActiveUsers = IDSet{}
	r.Completed = true
	return nil
}
