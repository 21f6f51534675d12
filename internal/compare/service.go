package compare

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wichananm65/catfood-compare/internal/feeding"
)

// Service orchestrates basket operations. Every call names its basket
// explicitly; the service holds no client identity.
type Service struct {
	repo     Repository
	maxItems int
	logger   *zap.Logger
	metrics  *Metrics
	now      func() time.Time
	newID    func() string
}

func NewService(repo Repository, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		maxItems: MaxItems,
		logger:   logger,
		metrics:  metrics,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// MaxItems returns the basket capacity.
func (s *Service) MaxItems() int {
	return s.maxItems
}

// Add appends a new entry built from f and returns the updated basket.
// Adding a product that is already in the basket creates a second entry.
func (s *Service) Add(ctx context.Context, basketID string, f Facts) ([]Entry, error) {
	if err := checkBasketID(basketID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(f.ProductLink) == "" {
		return nil, &ValidationError{Field: "productLink", Reason: "is required"}
	}
	if f.ListedPrice != nil && *f.ListedPrice < 0 {
		return nil, &ValidationError{Field: "lprice", Reason: "must be >= 0"}
	}

	now := s.now()
	e := Entry{
		ID:          s.newID(),
		ProductLink: strings.TrimSpace(f.ProductLink),
		ProductName: strings.TrimSpace(f.ProductName),
		Brand:       strings.TrimSpace(f.Brand),
		ImageURL:    strings.TrimSpace(f.ImageURL),
		ListedPrice: cloneFloat(f.ListedPrice),
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.repo.Append(ctx, basketID, e, s.maxItems)
	s.metrics.observe("add", err)
	if errors.Is(err, ErrCapacityExceeded) {
		s.logger.Warn("basket full", zap.String("basketId", basketID), zap.Int("maxItems", s.maxItems))
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("entry added",
		zap.String("basketId", basketID),
		zap.String("entryId", e.ID),
		zap.String("productName", e.ProductName),
	)
	return s.entries(ctx, basketID)
}

// Update merges p into the entry and returns the updated basket.
func (s *Service) Update(ctx context.Context, basketID, id string, p Patch) ([]Entry, error) {
	if err := checkBasketID(basketID); err != nil {
		return nil, err
	}
	e, err := s.repo.Merge(ctx, basketID, id, p, s.now())
	s.metrics.observe("update", err)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("entry updated",
		zap.String("basketId", basketID),
		zap.String("entryId", id),
		zap.Int("revision", e.Revision),
	)
	return s.entries(ctx, basketID)
}

// Remove deletes the entry if present and returns the updated basket.
func (s *Service) Remove(ctx context.Context, basketID, id string) ([]Entry, error) {
	if err := checkBasketID(basketID); err != nil {
		return nil, err
	}
	err := s.repo.Delete(ctx, basketID, id)
	s.metrics.observe("remove", err)
	if err != nil {
		return nil, err
	}
	return s.entries(ctx, basketID)
}

// List returns the basket with metrics derived against target.
func (s *Service) List(ctx context.Context, basketID string, target feeding.CalorieTarget) ([]Item, error) {
	if err := checkBasketID(basketID); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx, basketID)
	if err != nil {
		return nil, err
	}
	return Annotate(entries, target), nil
}

// Stats summarises every basket in the store.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx, s.maxItems)
}

// Counts returns entry counts for the given baskets; empty baskets are omitted.
func (s *Service) Counts(ctx context.Context, basketIDs []string) (map[string]int, error) {
	return s.repo.Counts(ctx, basketIDs)
}

func (s *Service) entries(ctx context.Context, basketID string) ([]Entry, error) {
	entries, err := s.repo.List(ctx, basketID)
	if err != nil {
		return nil, err
	}
	s.metrics.size(len(entries))
	return entries, nil
}

func checkBasketID(basketID string) error {
	if strings.TrimSpace(basketID) == "" {
		return ErrMissingBasketID
	}
	return nil
}
