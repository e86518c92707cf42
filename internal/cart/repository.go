package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/db"
)

type Repository interface {
	// Get returns the owner's cart without creating it; a missing cart comes back empty with a nil ID.
	Get(ctx context.Context, owner Owner) (*Cart, error)
	// Update loads (or lazily creates) the owner's cart under a row lock, applies fn
	// and persists whatever fn changed, all in one transaction.
	Update(ctx context.Context, owner Owner, fn func(c *Cart) error) (*Cart, error)
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Get(ctx context.Context, owner Owner) (*Cart, error) {
	return Load(ctx, r.pool, owner, false)
}

func (r *postgresRepository) Update(ctx context.Context, owner Owner, fn func(c *Cart) error) (*Cart, error) {
	var result *Cart
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := loadOrCreate(ctx, tx, owner)
		if err != nil {
			return err
		}

		before := make(map[uuid.UUID]int, len(c.Items))
		for _, item := range c.Items {
			before[item.ID] = item.Quantity
		}

		if err := fn(c); err != nil {
			return err
		}

		if err := persist(ctx, tx, c, before); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ownerColumn(owner Owner) (string, any) {
	if owner.IsUser() {
		return "user_id", owner.UserID
	}
	return "session_key", owner.SessionKey
}

// Load reads the owner's cart with hydrated variants. With lock set the cart row
// and every product its lines consume are locked FOR UPDATE.
func Load(ctx context.Context, q db.Querier, owner Owner, lock bool) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	column, value := ownerColumn(owner)
	query := fmt.Sprintf(`SELECT id, created_at, updated_at FROM carts WHERE %s = $1`, column)
	if lock {
		query += " FOR UPDATE"
	}

	c := &Cart{Owner: owner, Items: make([]*Item, 0)}
	err := q.QueryRow(ctx, query, value).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, nil
		}
		return nil, fmt.Errorf("repository: failed to select cart for %s: %w", owner, err)
	}

	if err := loadItems(ctx, q, c, lock); err != nil {
		return nil, err
	}
	return c, nil
}

func loadOrCreate(ctx context.Context, tx pgx.Tx, owner Owner) (*Cart, error) {
	if err := owner.Validate(); err != nil {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("repository: failed to generate cart ID: %w", err)
	}
	var userID uuid.NullUUID
	var sessionKey *string
	if owner.IsUser() {
		userID = uuid.NullUUID{UUID: owner.UserID, Valid: true}
	} else {
		sessionKey = &owner.SessionKey
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO carts (id, user_id, session_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT DO NOTHING
	`, id, userID, sessionKey, now)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create cart for %s: %w", owner, err)
	}

	c, err := Load(ctx, tx, owner, true)
	if err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, fmt.Errorf("repository: cart for %s vanished after insert", owner)
	}
	return c, nil
}

type itemRow struct {
	id        uuid.UUID
	productID uuid.NullUUID
	comboID   uuid.NullUUID
	offerID   uuid.NullUUID
	quantity  int
	createdAt time.Time
}

func (r itemRow) ref() (catalog.Ref, error) {
	switch {
	case r.productID.Valid && !r.comboID.Valid && !r.offerID.Valid:
		return catalog.Ref{Kind: catalog.KindProduct, ID: r.productID.UUID}, nil
	case r.comboID.Valid && !r.productID.Valid && !r.offerID.Valid:
		return catalog.Ref{Kind: catalog.KindCombo, ID: r.comboID.UUID}, nil
	case r.offerID.Valid && !r.productID.Valid && !r.comboID.Valid:
		return catalog.Ref{Kind: catalog.KindOffer, ID: r.offerID.UUID}, nil
	default:
		return catalog.Ref{}, fmt.Errorf("repository: cart item %s must reference exactly one variant", r.id)
	}
}

func refColumns(ref catalog.Ref) (product, combo, offer uuid.NullUUID) {
	id := uuid.NullUUID{UUID: ref.ID, Valid: true}
	switch ref.Kind {
	case catalog.KindProduct:
		product = id
	case catalog.KindCombo:
		combo = id
	case catalog.KindOffer:
		offer = id
	}
	return product, combo, offer
}

func loadItems(ctx context.Context, q db.Querier, c *Cart, lock bool) error {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, combo_id, offer_id, quantity, created_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at, id
	`, c.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to query cart items for cart %s: %w", c.ID, err)
	}

	var itemRows []itemRow
	for rows.Next() {
		var row itemRow
		if err := rows.Scan(&row.id, &row.productID, &row.comboID, &row.offerID, &row.quantity, &row.createdAt); err != nil {
			rows.Close()
			return fmt.Errorf("repository: failed to scan cart item for cart %s: %w", c.ID, err)
		}
		itemRows = append(itemRows, row)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("repository: failed iterating cart items for cart %s: %w", c.ID, err)
	}

	refs := make([]catalog.Ref, 0, len(itemRows))
	for _, row := range itemRows {
		ref, err := row.ref()
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	variants, err := catalog.LoadVariants(ctx, q, refs, lock)
	if err != nil {
		return fmt.Errorf("repository: failed to hydrate cart %s: %w", c.ID, err)
	}

	for i, row := range itemRows {
		v, ok := variants[refs[i]]
		if !ok {
			log.Warn().Stringer("cart_id", c.ID).Str("ref", refs[i].String()).Msg("repository: cart item references a missing catalog entry, skipping")
			continue
		}
		c.Items = append(c.Items, &Item{ID: row.id, Variant: v, Quantity: row.quantity, CreatedAt: row.createdAt})
	}
	return nil
}

func persist(ctx context.Context, tx pgx.Tx, c *Cart, before map[uuid.UUID]int) error {
	kept := make(map[uuid.UUID]bool, len(c.Items))

	for _, item := range c.Items {
		if item.ID == uuid.Nil {
			id, err := uuid.NewV4()
			if err != nil {
				return fmt.Errorf("repository: failed to generate cart item ID: %w", err)
			}
			product, combo, offer := refColumns(item.Variant.Ref())
			if item.CreatedAt.IsZero() {
				item.CreatedAt = time.Now().UTC()
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO cart_items (id, cart_id, product_id, combo_id, offer_id, quantity, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, id, c.ID, product, combo, offer, item.Quantity, item.CreatedAt)
			if err != nil {
				return fmt.Errorf("repository: failed to insert cart item into cart %s: %w", c.ID, err)
			}
			item.ID = id
			kept[id] = true
			continue
		}

		kept[item.ID] = true
		if prev, ok := before[item.ID]; ok && prev == item.Quantity {
			continue
		}
		if _, err := tx.Exec(ctx, `UPDATE cart_items SET quantity = $1 WHERE id = $2`, item.Quantity, item.ID); err != nil {
			return fmt.Errorf("repository: failed to update cart item %s: %w", item.ID, err)
		}
	}

	var removed []uuid.UUID
	for id := range before {
		if !kept[id] {
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1)`, removed); err != nil {
			return fmt.Errorf("repository: failed to delete cart items from cart %s: %w", c.ID, err)
		}
	}

	c.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, c.UpdatedAt, c.ID); err != nil {
		return fmt.Errorf("repository: failed to touch cart %s: %w", c.ID, err)
	}
	return nil
}

// ClearItems empties a cart; the cart row itself stays for reuse.
func ClearItems(ctx context.Context, q db.Querier, cartID uuid.UUID) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("repository: failed to clear cart %s: %w", cartID, err)
	}
	if _, err := q.Exec(ctx, `UPDATE carts SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), cartID); err != nil {
		return fmt.Errorf("repository: failed to touch cart %s: %w", cartID, err)
	}
	return nil
}
