package core

import (
	"context"

	"fieldparty/pkg/domain"
)

// PartyManager serializes every party mutation through a SessionStore.
type PartyManager struct {
	store *SessionStore[domain.Party, *domain.Party]
	opts  options
}

// NewPartyManager constructs a manager backed by docs.
func NewPartyManager(docs domain.DocumentStore, opts ...Option) *PartyManager {
	return &PartyManager{
		store: NewSessionStore[domain.Party](docs, opts...),
		opts:  buildOptions(opts),
	}
}

// CreateParty starts a party led by leader. The leader is its first member.
func (m *PartyManager) CreateParty(ctx context.Context, leader domain.UserID) (domain.Party, error) {
	var out domain.Party
	err := m.opts.run(ctx, "party.create", func(ctx context.Context) error {
		if err := domain.ValidateUser("leader", leader); err != nil {
			return err
		}
		created, err := m.store.Create(ctx, domain.NewParty(leader))
		out = created
		return err
	}, "leader", leader)
	return out, err
}

// JoinParty adds user to the party. Joining twice leaves the party unchanged.
func (m *PartyManager) JoinParty(ctx context.Context, partyID string, user domain.UserID) (domain.Party, error) {
	return m.mutate(ctx, "party.join", partyID, domain.ValidateUser("user", user), func(p *domain.Party) error {
		p.Join(user)
		return nil
	}, "user", user)
}

// LeaveParty removes user from the members. The leader cannot leave.
func (m *PartyManager) LeaveParty(ctx context.Context, partyID string, user domain.UserID) (domain.Party, error) {
	return m.mutate(ctx, "party.leave", partyID, domain.ValidateUser("user", user), func(p *domain.Party) error {
		return p.Leave(user)
	}, "user", user)
}

// ShareObservation appends ref to the party's shared items in commit order.
func (m *PartyManager) ShareObservation(ctx context.Context, partyID string, ref domain.ObservationRef) (domain.Party, error) {
	return m.mutate(ctx, "party.share", partyID, ref.Validate(), func(p *domain.Party) error {
		p.Share(ref)
		return nil
	}, "observation", ref.ID)
}

// GetParty returns the current state of the party.
func (m *PartyManager) GetParty(ctx context.Context, partyID string) (domain.Party, error) {
	var out domain.Party
	err := m.opts.run(ctx, "party.get", func(ctx context.Context) error {
		p, err := m.store.Read(ctx, partyID)
		out = p
		return err
	}, "party", partyID)
	return out, err
}

// ListParties returns every party ordered by id.
func (m *PartyManager) ListParties(ctx context.Context) ([]domain.Party, error) {
	var out []domain.Party
	err := m.opts.run(ctx, "party.list", func(ctx context.Context) error {
		ps, err := m.store.List(ctx)
		out = ps
		return err
	})
	return out, err
}

// AssertLeaderIsUser fails with Forbidden unless user leads the party.
func (m *PartyManager) AssertLeaderIsUser(ctx context.Context, partyID string, user domain.UserID) error {
	return m.opts.run(ctx, "party.assert_leader", func(ctx context.Context) error {
		p, err := m.store.Read(ctx, partyID)
		if err != nil {
			return err
		}
		return assertLeader(p, user)
	}, "party", partyID, "user", user)
}

// DeleteParty removes the party. Only its leader may do so.
func (m *PartyManager) DeleteParty(ctx context.Context, partyID string, caller domain.UserID) error {
	return m.opts.run(ctx, "party.delete", func(ctx context.Context) error {
		p, err := m.store.Read(ctx, partyID)
		if err != nil {
			return err
		}
		if err := assertLeader(p, caller); err != nil {
			return err
		}
		return m.store.Delete(ctx, partyID)
	}, "party", partyID, "user", caller)
}

func assertLeader(p domain.Party, user domain.UserID) error {
	if p.LeaderID != user {
		return domain.ForbiddenError{Kind: domain.KindParty, ID: p.ID, User: user, Role: "leader"}
	}
	return nil
}

// mutate runs fn under the party's slot. A non-nil invalid fails the
// operation before the party is locked or loaded.
func (m *PartyManager) mutate(ctx context.Context, op, partyID string, invalid error, fn func(*domain.Party) error, attrs ...any) (domain.Party, error) {
	var out domain.Party
	err := m.opts.run(ctx, op, func(ctx context.Context) error {
		if invalid != nil {
			return invalid
		}
		p, err := m.store.Mutate(ctx, partyID, fn)
		out = p
		return err
	}, append([]any{"party", partyID}, attrs...)...)
	return out, err
}
