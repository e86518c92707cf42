package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vasiliy-maslov/winex/internal/db"
)

type Repository interface {
	GetVariant(ctx context.Context, ref Ref) (Variant, error)
	ListActiveProducts(ctx context.Context) ([]*Product, error)
	ListActiveCombos(ctx context.Context) ([]*Combo, error)
	ListValidOffers(ctx context.Context, now time.Time) ([]*Offer, error)
	InventoryStats(ctx context.Context) (InventoryStats, error)
}

type postgresRepository struct {
	db db.Querier
}

func NewRepository(q db.Querier) Repository {
	return &postgresRepository{db: q}
}

func (r *postgresRepository) GetVariant(ctx context.Context, ref Ref) (Variant, error) {
	variants, err := LoadVariants(ctx, r.db, []Ref{ref}, false)
	if err != nil {
		return nil, err
	}
	v, ok := variants[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (r *postgresRepository) ListActiveProducts(ctx context.Context) ([]*Product, error) {
	query := `
		SELECT id, name, description, price, category, stock, is_active
		FROM products
		WHERE is_active AND stock > 0
		ORDER BY category, name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query active products: %w", err)
	}
	defer rows.Close()

	products := make([]*Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating active products: %w", err)
	}
	return products, nil
}

func (r *postgresRepository) ListActiveCombos(ctx context.Context) ([]*Combo, error) {
	ids, err := r.selectIDs(ctx, `SELECT id FROM combo_offers WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list active combos: %w", err)
	}

	refs := make([]Ref, len(ids))
	for i, id := range ids {
		refs[i] = Ref{Kind: KindCombo, ID: id}
	}
	variants, err := LoadVariants(ctx, r.db, refs, false)
	if err != nil {
		return nil, err
	}

	combos := make([]*Combo, 0, len(refs))
	for _, ref := range refs {
		if c, ok := variants[ref].(*Combo); ok {
			combos = append(combos, c)
		}
	}
	return combos, nil
}

func (r *postgresRepository) ListValidOffers(ctx context.Context, now time.Time) ([]*Offer, error) {
	ids, err := r.selectIDs(ctx, `
		SELECT id FROM offers
		WHERE is_active AND start_date <= $1 AND end_date >= $1
		ORDER BY created_at DESC
	`, now)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to list valid offers: %w", err)
	}

	refs := make([]Ref, len(ids))
	for i, id := range ids {
		refs[i] = Ref{Kind: KindOffer, ID: id}
	}
	variants, err := LoadVariants(ctx, r.db, refs, false)
	if err != nil {
		return nil, err
	}

	offers := make([]*Offer, 0, len(refs))
	for _, ref := range refs {
		if o, ok := variants[ref].(*Offer); ok {
			offers = append(offers, o)
		}
	}
	return offers, nil
}

func (r *postgresRepository) InventoryStats(ctx context.Context) (InventoryStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE stock < $1),
			COUNT(*) FILTER (WHERE stock = 0)
		FROM products
	`
	var stats InventoryStats
	err := r.db.QueryRow(ctx, query, LowStockThreshold).Scan(&stats.TotalProducts, &stats.LowStock, &stats.OutOfStock)
	if err != nil {
		return InventoryStats{}, fmt.Errorf("repository: failed to compute inventory stats: %w", err)
	}
	return stats, nil
}

func (r *postgresRepository) selectIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LoadVariants hydrates the referenced products, combos and offers together with
// every product they consume. Missing refs are left out of the result.
// With lock set, all involved product rows are locked FOR UPDATE in id order,
// so concurrent checkouts touching the same products queue instead of deadlocking.
func LoadVariants(ctx context.Context, q db.Querier, refs []Ref, lock bool) (map[Ref]Variant, error) {
	var productIDs, comboIDs, offerIDs []uuid.UUID
	for _, ref := range refs {
		switch ref.Kind {
		case KindProduct:
			productIDs = append(productIDs, ref.ID)
		case KindCombo:
			comboIDs = append(comboIDs, ref.ID)
		case KindOffer:
			offerIDs = append(offerIDs, ref.ID)
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidKind, ref.Kind)
		}
	}

	offers, offerProducts, offerCombos, err := loadOffers(ctx, q, offerIDs)
	if err != nil {
		return nil, err
	}
	for _, ids := range offerProducts {
		productIDs = append(productIDs, ids...)
	}
	for _, ids := range offerCombos {
		comboIDs = append(comboIDs, ids...)
	}

	combos, comboItems, err := loadCombos(ctx, q, uniqueIDs(comboIDs))
	if err != nil {
		return nil, err
	}
	for _, items := range comboItems {
		for _, item := range items {
			productIDs = append(productIDs, item.productID)
		}
	}

	products, err := loadProducts(ctx, q, uniqueIDs(productIDs), lock)
	if err != nil {
		return nil, err
	}

	for id, c := range combos {
		for _, item := range comboItems[id] {
			p, ok := products[item.productID]
			if !ok {
				return nil, fmt.Errorf("repository: combo %s references missing product %s", id, item.productID)
			}
			c.Items = append(c.Items, ComboItem{Product: p, Quantity: item.quantity})
		}
	}
	for id, o := range offers {
		for _, pid := range offerProducts[id] {
			p, ok := products[pid]
			if !ok {
				return nil, fmt.Errorf("repository: offer %s references missing product %s", id, pid)
			}
			o.Products = append(o.Products, p)
		}
		for _, cid := range offerCombos[id] {
			c, ok := combos[cid]
			if !ok {
				return nil, fmt.Errorf("repository: offer %s references missing combo %s", id, cid)
			}
			o.Combos = append(o.Combos, c)
		}
	}

	result := make(map[Ref]Variant, len(refs))
	for _, ref := range refs {
		switch ref.Kind {
		case KindProduct:
			if p, ok := products[ref.ID]; ok {
				result[ref] = p
			}
		case KindCombo:
			if c, ok := combos[ref.ID]; ok {
				result[ref] = c
			}
		case KindOffer:
			if o, ok := offers[ref.ID]; ok {
				result[ref] = o
			}
		}
	}
	return result, nil
}

type comboItemRow struct {
	productID uuid.UUID
	quantity  int
}

func loadOffers(ctx context.Context, q db.Querier, ids []uuid.UUID) (map[uuid.UUID]*Offer, map[uuid.UUID][]uuid.UUID, map[uuid.UUID][]uuid.UUID, error) {
	offers := make(map[uuid.UUID]*Offer)
	offerProducts := make(map[uuid.UUID][]uuid.UUID)
	offerCombos := make(map[uuid.UUID][]uuid.UUID)
	if len(ids) == 0 {
		return offers, offerProducts, offerCombos, nil
	}

	rows, err := q.Query(ctx, `
		SELECT id, title, description, offer_type, discount_percentage, start_date, end_date, is_active, created_at
		FROM offers
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("repository: failed to query offers: %w", err)
	}
	for rows.Next() {
		var o Offer
		if err := rows.Scan(&o.ID, &o.Title, &o.Description, &o.Type, &o.DiscountPercentage,
			&o.StartDate, &o.EndDate, &o.IsActive, &o.CreatedAt); err != nil {
			rows.Close()
			return nil, nil, nil, fmt.Errorf("repository: failed to scan offer: %w", err)
		}
		o.Products = make([]*Product, 0)
		o.Combos = make([]*Combo, 0)
		offers[o.ID] = &o
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("repository: failed iterating offers: %w", err)
	}

	if err := collectPairs(ctx, q, `
		SELECT offer_id, product_id FROM offer_products WHERE offer_id = ANY($1) ORDER BY offer_id, product_id
	`, ids, offerProducts); err != nil {
		return nil, nil, nil, fmt.Errorf("repository: failed to query offer products: %w", err)
	}
	if err := collectPairs(ctx, q, `
		SELECT offer_id, combo_id FROM offer_combos WHERE offer_id = ANY($1) ORDER BY offer_id, combo_id
	`, ids, offerCombos); err != nil {
		return nil, nil, nil, fmt.Errorf("repository: failed to query offer combos: %w", err)
	}

	return offers, offerProducts, offerCombos, nil
}

func collectPairs(ctx context.Context, q db.Querier, query string, ids []uuid.UUID, into map[uuid.UUID][]uuid.UUID) error {
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var owner, member uuid.UUID
		if err := rows.Scan(&owner, &member); err != nil {
			return err
		}
		into[owner] = append(into[owner], member)
	}
	return rows.Err()
}

func loadCombos(ctx context.Context, q db.Querier, ids []uuid.UUID) (map[uuid.UUID]*Combo, map[uuid.UUID][]comboItemRow, error) {
	combos := make(map[uuid.UUID]*Combo)
	items := make(map[uuid.UUID][]comboItemRow)
	if len(ids) == 0 {
		return combos, items, nil
	}

	rows, err := q.Query(ctx, `
		SELECT id, name, description, discount_percentage, is_active
		FROM combo_offers
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to query combos: %w", err)
	}
	for rows.Next() {
		var c Combo
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.DiscountPercentage, &c.IsActive); err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("repository: failed to scan combo: %w", err)
		}
		c.Items = make([]ComboItem, 0)
		combos[c.ID] = &c
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("repository: failed iterating combos: %w", err)
	}

	itemRows, err := q.Query(ctx, `
		SELECT combo_id, product_id, quantity
		FROM combo_items
		WHERE combo_id = ANY($1)
		ORDER BY combo_id, position, id
	`, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("repository: failed to query combo items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var comboID uuid.UUID
		var row comboItemRow
		if err := itemRows.Scan(&comboID, &row.productID, &row.quantity); err != nil {
			return nil, nil, fmt.Errorf("repository: failed to scan combo item: %w", err)
		}
		items[comboID] = append(items[comboID], row)
	}
	if err := itemRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("repository: failed iterating combo items: %w", err)
	}

	return combos, items, nil
}

func loadProducts(ctx context.Context, q db.Querier, ids []uuid.UUID, lock bool) (map[uuid.UUID]*Product, error) {
	products := make(map[uuid.UUID]*Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	query := `
		SELECT id, name, description, price, category, stock, is_active
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
	`
	if lock {
		query += " FOR UPDATE"
	}

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category, &p.Stock, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
