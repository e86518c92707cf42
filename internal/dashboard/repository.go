package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/winex/internal/order"
)

type Repository interface {
	// StatusCounts counts orders per status, optionally restricted to created_at in r.
	StatusCounts(ctx context.Context, r *Range) (StatusCounts, error)
	Revenue(ctx context.Context, r Range) (decimal.Decimal, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	// ActiveOrders returns every order that is neither completed nor cancelled, with its items.
	ActiveOrders(ctx context.Context) ([]DisplayOrder, error)
	// DailySales buckets revenue by calendar day in the repository's business time zone.
	DailySales(ctx context.Context, r Range) ([]DailySales, error)
	// NewOrderCount counts pending orders created at or after since.
	NewOrderCount(ctx context.Context, since time.Time) (int, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]OrderRow, int, error)
	RecentOrders(ctx context.Context, limit int) ([]OrderRow, error)
}

// OrderQuery is a resolved OrderFilter: dates are absolute and paging is clamped.
type OrderQuery struct {
	Status order.OrderStatus
	Type   order.OrderType
	Range  *Range
	Search string
	Limit  int
	Offset int
}

type sqlxRepository struct {
	db  *sqlx.DB
	loc *time.Location
}

// NewRepository reads reports through db; loc decides where a business day starts.
func NewRepository(db *sqlx.DB, loc *time.Location) Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &sqlxRepository{db: db, loc: loc}
}

func statusStrings(statuses []order.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *sqlxRepository) StatusCounts(ctx context.Context, rng *Range) (StatusCounts, error) {
	query := `SELECT status, count(*) AS count FROM orders`
	var args []any
	if rng != nil {
		query += ` WHERE created_at >= $1 AND created_at < $2`
		args = append(args, rng.From, rng.To)
	}
	query += ` GROUP BY status`

	var rows []statusCountRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("repository: failed to count orders by status: %w", err)
	}

	counts := make(StatusCounts, len(order.AllStatuses))
	for _, s := range order.AllStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *sqlxRepository) Revenue(ctx context.Context, rng Range) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE status = ANY($1) AND created_at >= $2 AND created_at < $3
	`, pq.Array(statusStrings(RevenueStatuses)), rng.From, rng.To)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repository: failed to sum revenue: %w", err)
	}
	return total, nil
}

func (r *sqlxRepository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	products := make([]TopProduct, 0, limit)
	err := r.db.SelectContext(ctx, &products, `
		SELECT p.id AS product_id, p.name, SUM(oi.quantity) AS total_quantity,
			SUM(oi.quantity * oi.price) AS revenue
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.kind = 'product'
		GROUP BY p.id, p.name
		ORDER BY total_quantity DESC, p.name
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to rank products: %w", err)
	}
	return products, nil
}

func (r *sqlxRepository) ActiveOrders(ctx context.Context) ([]DisplayOrder, error) {
	var orders []DisplayOrder
	err := r.db.SelectContext(ctx, &orders, `
		SELECT id, COALESCE(token_number, '') AS token_number, order_type, status,
			phone_number, total_amount, created_at
		FROM orders
		WHERE status <> ALL($1)
	`, pq.Array([]string{string(order.StatusCompleted), string(order.StatusCancelled)}))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select active orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, len(orders))
	byID := make(map[uuid.UUID]*DisplayOrder, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID.String()
		orders[i].Items = make([]DisplayItem, 0)
		byID[orders[i].ID] = &orders[i]
	}

	var items []DisplayItem
	err = r.db.SelectContext(ctx, &items, `
		SELECT order_id, name, quantity
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select items of active orders: %w", err)
	}
	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return orders, nil
}

func (r *sqlxRepository) DailySales(ctx context.Context, rng Range) ([]DailySales, error) {
	days := make([]DailySales, 0)
	err := r.db.SelectContext(ctx, &days, `
		SELECT date_trunc('day', created_at AT TIME ZONE CAST($4 AS text)) AT TIME ZONE CAST($4 AS text) AS day,
			COALESCE(SUM(total_amount), 0) AS revenue,
			count(*) AS orders
		FROM orders
		WHERE status = ANY($1) AND created_at >= $2 AND created_at < $3
		GROUP BY 1
		ORDER BY 1
	`, pq.Array(statusStrings(RevenueStatuses)), rng.From, rng.To, r.loc.String())
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build daily sales: %w", err)
	}
	for i := range days {
		days[i].Date = days[i].Date.In(r.loc)
	}
	return days, nil
}

func (r *sqlxRepository) NewOrderCount(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT count(*) FROM orders WHERE status = $1 AND created_at >= $2
	`, string(order.StatusPending), since)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count new orders: %w", err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix matches values starting with s; wildcards typed by staff match literally.
func likePrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}

const orderRowColumns = `o.id, o.phone_number, o.order_type, o.channel, o.status,
	COALESCE(o.token_number, '') AS token_number, o.total_amount, o.created_at,
	(SELECT COALESCE(SUM(oi.quantity), 0) FROM order_items oi WHERE oi.order_id = o.id) AS item_count`

func (r *sqlxRepository) ListOrders(ctx context.Context, q OrderQuery) ([]OrderRow, int, error) {
	var where []string
	params := map[string]any{
		"limit":  q.Limit,
		"offset": q.Offset,
	}
	if q.Status != "" {
		where = append(where, "o.status = :status")
		params["status"] = string(q.Status)
	}
	if q.Type != "" {
		where = append(where, "o.order_type = :order_type")
		params["order_type"] = string(q.Type)
	}
	if q.Range != nil {
		where = append(where, "o.created_at >= :from AND o.created_at < :to")
		params["from"] = q.Range.From
		params["to"] = q.Range.To
	}
	if q.Search != "" {
		where = append(where, `(o.phone_number LIKE :search_prefix
			OR o.token_number = :search
			OR upper(replace(CAST(o.id AS text), '-', '')) LIKE upper(:search_prefix))`)
		params["search"] = q.Search
		params["search_prefix"] = likePrefix(q.Search)
	}

	filter := ""
	if len(where) > 0 {
		filter = " WHERE " + strings.Join(where, " AND ")
	}

	countQuery, countArgs, err := r.named(`SELECT count(*) FROM orders o`+filter, params)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count filtered orders: %w", err)
	}

	listQuery, listArgs, err := r.named(`SELECT `+orderRowColumns+` FROM orders o`+filter+`
		ORDER BY o.created_at DESC
		LIMIT :limit OFFSET :offset`, params)
	if err != nil {
		return nil, 0, err
	}
	rows := make([]OrderRow, 0, q.Limit)
	if err := r.db.SelectContext(ctx, &rows, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to list filtered orders: %w", err)
	}
	return rows, total, nil
}

func (r *sqlxRepository) named(query string, params map[string]any) (string, []any, error) {
	bound, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, fmt.Errorf("repository: failed to bind order filter: %w", err)
	}
	return r.db.Rebind(bound), args, nil
}

func (r *sqlxRepository) RecentOrders(ctx context.Context, limit int) ([]OrderRow, error) {
	rows := make([]OrderRow, 0, limit)
	err := r.db.SelectContext(ctx, &rows, `SELECT `+orderRowColumns+` FROM orders o
		ORDER BY o.created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to select recent orders: %w", err)
	}
	return rows, nil
}
