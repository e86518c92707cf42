package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/db"
)

const tokenIndex = "uq_orders_daily_token"

const orderColumns = `id, user_id, phone_number, order_type, channel, delivery_address,
	token_number, token_date, total_amount, status, created_at, updated_at`

type postgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &postgresStore{pool: pool}
}

func (s *postgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &postgresTx{tx: tx})
	})
}

func (s *postgresStore) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrder(ctx, s.pool, id, false)
}

func (s *postgresStore) FindPickupByToken(ctx context.Context, token string) (*Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE token_number = $1 AND order_type = 'pickup'
		ORDER BY created_at DESC
		LIMIT 1`

	o, err := scanOrder(s.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by token %s: %w", token, err)
	}
	if err := loadDetails(ctx, s.pool, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *postgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders for user id %s: %w", userID, err)
	}

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("repository: failed scan order for user id %s: %w", userID, err)
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating orders for user id %s: %w", userID, err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	byID := make(map[uuid.UUID]*Order, len(orders))
	ids := make([]uuid.UUID, 0, len(orders))
	for i := range orders {
		orders[i].OrderItems = make([]OrderItem, 0)
		byID[orders[i].ID] = &orders[i]
		ids = append(ids, orders[i].ID)
	}

	items, err := selectItems(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.OrderItems = append(o.OrderItems, item)
		}
	}

	payments, err := selectPayments(ctx, s.pool, ids)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if o, ok := byID[p.OrderID]; ok {
			o.Payment = p
		}
	}
	return orders, nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) LoadCart(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	return cart.Load(ctx, t.tx, owner, true)
}

func (t *postgresTx) LoadVariants(ctx context.Context, refs []catalog.Ref) (map[catalog.Ref]catalog.Variant, error) {
	return catalog.LoadVariants(ctx, t.tx, refs, true)
}

func (t *postgresTx) TokenInUse(ctx context.Context, day time.Time, token string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE token_date = $1 AND token_number = $2 AND order_type = 'pickup'
		)
	`, day, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("repository: failed to check token %s: %w", token, err)
	}
	return exists, nil
}

func (t *postgresTx) InsertOrder(ctx context.Context, o *Order) error {
	var token *string
	var tokenDate *time.Time
	if o.Type == TypePickup {
		token = &o.TokenNumber
		tokenDate = &o.TokenDate
	}

	// Savepoint, so a token collision does not poison the outer transaction.
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to open savepoint: %w", err)
	}
	_, err = sp.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		o.ID,
		o.UserID,
		o.Phone,
		string(o.Type),
		string(o.Channel),
		o.DeliveryAddress,
		token,
		tokenDate,
		o.TotalAmount,
		string(o.Status),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Stringer("order_id", o.ID).Msg("repository: failed to roll back savepoint")
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == tokenIndex {
			return ErrTokenConflict
		}
		return fmt.Errorf("repository: failed to insert order: %w", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("repository: failed to release savepoint: %w", err)
	}

	for i := range o.OrderItems {
		item := &o.OrderItems[i]
		_, err := t.tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, kind, product_id, combo_id, offer_id, name, quantity, price, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			item.ID,
			o.ID,
			string(item.Kind),
			item.ProductID,
			item.ComboID,
			item.OfferID,
			item.Name,
			item.Quantity,
			item.Price,
			i,
		)
		if err != nil {
			return fmt.Errorf("repository: failed to insert order item for order %s: %w", o.ID, err)
		}
	}
	return nil
}

func (t *postgresTx) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE products
		SET stock = stock - $1
		WHERE id = $2 AND stock >= $1
	`, qty, productID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return ErrStockWouldGoNegative
		}
		return fmt.Errorf("repository: failed to decrement stock of product %s: %w", productID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrStockWouldGoNegative
	}
	return nil
}

func (t *postgresTx) InsertPayment(ctx context.Context, p *Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments (id, order_id, amount, status, payment_method, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.OrderID, p.Amount, string(p.Status), string(p.Method), p.TransactionID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert payment for order %s: %w", p.OrderID, err)
	}
	return nil
}

func (t *postgresTx) ClearCart(ctx context.Context, cartID uuid.UUID) error {
	return cart.ClearItems(ctx, t.tx, cartID)
}

func (t *postgresTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrder(ctx, t.tx, id, true)
}

func (t *postgresTx) UpdateStatus(ctx context.Context, o *Order, from OrderStatus) error {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, updated_at = $2
		WHERE id = $3
	`, string(o.Status), o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("repository: failed to update order status %s: %w", o.ID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, from_status, to_status, changed_at)
		VALUES ($1, $2, $3, $4)
	`, o.ID, string(from), string(o.Status), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to log status change of order %s: %w", o.ID, err)
	}
	return nil
}

func (t *postgresTx) UpdateDeliveryAddress(ctx context.Context, id uuid.UUID, address string, now time.Time) error {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET delivery_address = $1, updated_at = $2
		WHERE id = $3
	`, address, now, id)
	if err != nil {
		return fmt.Errorf("repository: failed to update delivery address of order %s: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func getOrder(ctx context.Context, q db.Querier, id uuid.UUID, lock bool) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if lock {
		query += " FOR UPDATE"
	}

	o, err := scanOrder(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order by id %s: %w", id, err)
	}
	if err := loadDetails(ctx, q, o); err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var token *string
	var tokenDate *time.Time
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.Phone,
		&o.Type,
		&o.Channel,
		&o.DeliveryAddress,
		&token,
		&tokenDate,
		&o.TotalAmount,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if token != nil {
		o.TokenNumber = *token
	}
	if tokenDate != nil {
		o.TokenDate = *tokenDate
	}
	return &o, nil
}

func loadDetails(ctx context.Context, q db.Querier, o *Order) error {
	items, err := selectItems(ctx, q, []uuid.UUID{o.ID})
	if err != nil {
		return err
	}
	o.OrderItems = items

	payments, err := selectPayments(ctx, q, []uuid.UUID{o.ID})
	if err != nil {
		return err
	}
	if len(payments) > 0 {
		o.Payment = payments[0]
	}
	return nil
}

func selectItems(ctx context.Context, q db.Querier, orderIDs []uuid.UUID) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, kind, product_id, combo_id, offer_id, name, quantity, price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	items := make([]OrderItem, 0)
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.Kind,
			&item.ProductID,
			&item.ComboID,
			&item.OfferID,
			&item.Name,
			&item.Quantity,
			&item.Price,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating order items: %w", err)
	}
	return items, nil
}

func selectPayments(ctx context.Context, q db.Querier, orderIDs []uuid.UUID) ([]*Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, amount, status, payment_method, transaction_id, created_at
		FROM payments
		WHERE order_id = ANY($1)
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Amount, &p.Status, &p.Method, &p.TransactionID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("repository: failed to scan payment: %w", err)
		}
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: failed iterating payments: %w", err)
	}
	return payments, nil
}
