package partners

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Service implements partner use cases for one kind. The same type serves
// suppliers and customers; the kind is fixed at construction.
type Service struct {
	kind   Kind
	repo   Repository
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService wires a partner service for the given kind. audit may be nil.
func NewService(kind Kind, repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{kind: kind, repo: repo, audit: audit, logger: logger}
}

// Create registers a new party.
func (s *Service) Create(ctx context.Context, actorID, ownerID int64, in PartyInput) (Party, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Party{}, fmt.Errorf("name is required: %w", shared.ErrInvalidInput)
	}
	p := Party{
		OwnerID:     ownerID,
		Kind:        s.kind,
		Name:        in.Name,
		ContactName: in.ContactName,
		Email:       in.Email,
		Phone:       in.Phone,
		Address:     in.Address,
	}
	if err := s.repo.Insert(ctx, &p); err != nil {
		return Party{}, err
	}
	s.recordAudit(ctx, actorID, "create", p.ID)
	return p, nil
}

// Update replaces the mutable fields of a party.
func (s *Service) Update(ctx context.Context, actorID, ownerID, id int64, in PartyInput) (Party, error) {
	p, err := s.repo.Get(ctx, ownerID, s.kind, id)
	if err != nil {
		return Party{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Party{}, fmt.Errorf("name is required: %w", shared.ErrInvalidInput)
	}
	p.Name = in.Name
	p.ContactName = in.ContactName
	p.Email = in.Email
	p.Phone = in.Phone
	p.Address = in.Address
	if err := s.repo.Update(ctx, p); err != nil {
		return Party{}, err
	}
	s.recordAudit(ctx, actorID, "update", p.ID)
	return p, nil
}

// Get fetches one party.
func (s *Service) Get(ctx context.Context, ownerID, id int64) (Party, error) {
	return s.repo.Get(ctx, ownerID, s.kind, id)
}

// List returns the owner's active parties.
func (s *Service) List(ctx context.Context, ownerID int64) ([]Party, error) {
	return s.repo.List(ctx, ownerID, s.kind)
}

// Delete retires a party.
func (s *Service) Delete(ctx context.Context, actorID, ownerID, id int64) error {
	if err := s.repo.Deactivate(ctx, ownerID, s.kind, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "delete", id)
	return nil
}

// Exists reports whether an active party exists. Used by order creation to
// verify the customer reference.
func (s *Service) Exists(ctx context.Context, ownerID, id int64) (bool, error) {
	return s.repo.Exists(ctx, ownerID, s.kind, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, id int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   string(s.kind) + "." + action,
		Entity:   string(s.kind),
		EntityID: strconv.FormatInt(id, 10),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
