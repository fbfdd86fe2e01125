package core

import (
	"fieldparty/internal/infra/persistence/memory"
	"fieldparty/pkg/domain"
)

// Service bundles the session managers over one document store.
type Service struct {
	Parties *PartyManager
	Routes  *RouteManager
	docs    domain.DocumentStore
}

// NewService constructs managers sharing docs and opts.
func NewService(docs domain.DocumentStore, opts ...Option) *Service {
	return &Service{
		Parties: NewPartyManager(docs, opts...),
		Routes:  NewRouteManager(docs, opts...),
		docs:    docs,
	}
}

// NewInMemoryService constructs a service backed by a fresh in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Documents exposes the underlying store for export and import.
func (s *Service) Documents() domain.DocumentStore { return s.docs }
