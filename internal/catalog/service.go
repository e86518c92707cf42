package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

type Service interface {
	Get(ctx context.Context, ref Ref) (Variant, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	GetCombo(ctx context.Context, id uuid.UUID) (*Combo, error)
	GetOffer(ctx context.Context, id uuid.UUID) (*Offer, error)
	Shop(ctx context.Context) (*Shop, error)
	InventoryStats(ctx context.Context) (InventoryStats, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) Get(ctx context.Context, ref Ref) (Variant, error) {
	v, err := s.repo.GetVariant(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn().Str("ref", ref.String()).Msg("service: catalog item not found")
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		log.Error().Err(err).Str("ref", ref.String()).Msg("service: failed to load catalog item")
		return nil, fmt.Errorf("service: failed to load catalog item: %w", err)
	}
	return v, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	v, err := s.Get(ctx, Ref{Kind: KindProduct, ID: id})
	if err != nil {
		return nil, err
	}
	return v.(*Product), nil
}

func (s *service) GetCombo(ctx context.Context, id uuid.UUID) (*Combo, error) {
	v, err := s.Get(ctx, Ref{Kind: KindCombo, ID: id})
	if err != nil {
		return nil, err
	}
	return v.(*Combo), nil
}

func (s *service) GetOffer(ctx context.Context, id uuid.UUID) (*Offer, error) {
	v, err := s.Get(ctx, Ref{Kind: KindOffer, ID: id})
	if err != nil {
		return nil, err
	}
	return v.(*Offer), nil
}

func (s *service) Shop(ctx context.Context) (*Shop, error) {
	products, err := s.repo.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list products: %w", err)
	}
	combos, err := s.repo.ListActiveCombos(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list combos: %w", err)
	}
	offers, err := s.repo.ListValidOffers(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("service: failed to list offers: %w", err)
	}

	return &Shop{Products: products, Combos: combos, Offers: offers}, nil
}

func (s *service) InventoryStats(ctx context.Context) (InventoryStats, error) {
	stats, err := s.repo.InventoryStats(ctx)
	if err != nil {
		return InventoryStats{}, fmt.Errorf("service: failed to load inventory stats: %w", err)
	}
	return stats, nil
}
