package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/catalog"
)

type Service interface {
	View(ctx context.Context, owner Owner) (*Summary, error)
	AddItem(ctx context.Context, owner Owner, ref catalog.Ref) (*Summary, error)
	IncreaseItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*Summary, error)
	DecreaseItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*Summary, error)
	RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*Summary, error)
}

type service struct {
	repo    Repository
	catalog catalog.Service
	pricing Pricing
	now     func() time.Time
}

func NewService(repo Repository, catalogService catalog.Service, pricing Pricing) Service {
	return &service{
		repo:    repo,
		catalog: catalogService,
		pricing: pricing,
		now:     time.Now,
	}
}

func (s *service) View(ctx context.Context, owner Owner) (*Summary, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}
	c, err := s.repo.Get(ctx, owner)
	if err != nil {
		log.Error().Err(err).Stringer("owner", owner).Msg("service: failed to load cart")
		return nil, fmt.Errorf("service: failed to load cart: %w", err)
	}
	return Summarize(c, s.pricing), nil
}

func (s *service) AddItem(ctx context.Context, owner Owner, ref catalog.Ref) (*Summary, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	v, err := s.catalog.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, owner, "add", func(c *Cart) error {
		return c.Add(v, s.now())
	})
}

func (s *service) IncreaseItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*Summary, error) {
	return s.mutate(ctx, owner, "increase", func(c *Cart) error {
		return c.Increase(itemID, s.now())
	})
}

func (s *service) DecreaseItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*Summary, error) {
	return s.mutate(ctx, owner, "decrease", func(c *Cart) error {
		return c.Decrease(itemID)
	})
}

func (s *service) RemoveItem(ctx context.Context, owner Owner, itemID uuid.UUID) (*Summary, error) {
	return s.mutate(ctx, owner, "remove", func(c *Cart) error {
		return c.Remove(itemID)
	})
}

func (s *service) mutate(ctx context.Context, owner Owner, action string, fn func(c *Cart) error) (*Summary, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.Update(ctx, owner, fn)
	if err != nil {
		var stockErr *OutOfStockError
		switch {
		case errors.As(err, &stockErr):
			log.Info().Stringer("owner", owner).Str("action", action).Str("item", stockErr.Item).Int("available", stockErr.Available).Msg("service: cart mutation hit stock ceiling")
			return nil, err
		case errors.Is(err, ErrItemNotFound), errors.Is(err, catalog.ErrUnavailable):
			log.Warn().Err(err).Stringer("owner", owner).Str("action", action).Msg("service: cart mutation rejected")
			return nil, err
		default:
			log.Error().Err(err).Stringer("owner", owner).Str("action", action).Msg("service: failed to update cart")
			return nil, fmt.Errorf("service: failed to %s cart item: %w", action, err)
		}
	}

	log.Debug().Stringer("owner", owner).Stringer("cart_id", c.ID).Str("action", action).Int("items", len(c.Items)).Msg("service: cart updated")
	return Summarize(c, s.pricing), nil
}
