package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Service implements catalog use cases.
type Service struct {
	repo   Repository
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService wires a catalog service. audit may be nil.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers a new item with zeroed balances.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateItemInput) (Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if in.Name == "" || in.SKU == "" {
		return Item{}, fmt.Errorf("name and sku are required: %w", shared.ErrInvalidInput)
	}
	if in.PackagesPerPallet < 1 {
		return Item{}, fmt.Errorf("packages_per_pallet must be at least 1: %w", shared.ErrInvalidInput)
	}
	if in.UnitsPerPackage < 1 {
		in.UnitsPerPackage = 1
	}
	if in.MinStockLevel < 0 {
		return Item{}, fmt.Errorf("min_stock_level must not be negative: %w", shared.ErrInvalidInput)
	}

	item := Item{
		OwnerID:           in.OwnerID,
		Name:              in.Name,
		SKU:               in.SKU,
		Description:       in.Description,
		PackagesPerPallet: in.PackagesPerPallet,
		UnitsPerPackage:   in.UnitsPerPackage,
		MinStockLevel:     in.MinStockLevel,
	}
	if err := s.repo.Insert(ctx, &item); err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, actorID, "item.create", item.ID)
	return item, nil
}

// Update applies the non-nil fields of in to the item. Changing the pallet
// factor does not touch stored balances; the next movement re-normalizes the
// tiers under the new factor.
func (s *Service) Update(ctx context.Context, actorID, ownerID, itemID int64, in UpdateItemInput) (Item, error) {
	item, err := s.repo.Get(ctx, ownerID, itemID)
	if err != nil {
		return Item{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Item{}, fmt.Errorf("name must not be empty: %w", shared.ErrInvalidInput)
		}
		item.Name = name
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.PackagesPerPallet != nil {
		if *in.PackagesPerPallet < 1 {
			return Item{}, fmt.Errorf("packages_per_pallet must be at least 1: %w", shared.ErrInvalidInput)
		}
		item.PackagesPerPallet = *in.PackagesPerPallet
	}
	if in.UnitsPerPackage != nil {
		if *in.UnitsPerPackage < 1 {
			return Item{}, fmt.Errorf("units_per_package must be at least 1: %w", shared.ErrInvalidInput)
		}
		item.UnitsPerPackage = *in.UnitsPerPackage
	}
	if in.MinStockLevel != nil {
		if *in.MinStockLevel < 0 {
			return Item{}, fmt.Errorf("min_stock_level must not be negative: %w", shared.ErrInvalidInput)
		}
		item.MinStockLevel = *in.MinStockLevel
	}
	if in.IsActive != nil {
		item.IsActive = *in.IsActive
	}
	if err := s.repo.Update(ctx, item); err != nil {
		return Item{}, err
	}
	s.recordAudit(ctx, actorID, "item.update", item.ID)
	return item, nil
}

// Get fetches one item.
func (s *Service) Get(ctx context.Context, ownerID, itemID int64) (Item, error) {
	return s.repo.Get(ctx, ownerID, itemID)
}

// List returns the owner's items.
func (s *Service) List(ctx context.Context, ownerID int64, activeOnly bool) ([]Item, error) {
	return s.repo.List(ctx, ownerID, activeOnly)
}

// Delete retires an item.
func (s *Service) Delete(ctx context.Context, actorID, ownerID, itemID int64) error {
	if err := s.repo.Deactivate(ctx, ownerID, itemID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "item.delete", itemID)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, itemID int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "item",
		EntityID: strconv.FormatInt(itemID, 10),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
