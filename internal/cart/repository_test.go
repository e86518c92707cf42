package cart_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/winex/internal/cart"
	"github.com/vasiliy-maslov/winex/internal/catalog"
	"github.com/vasiliy-maslov/winex/internal/db"
	"github.com/vasiliy-maslov/winex/internal/db/dbtest"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	cfg, ok := dbtest.Config("../../migrations")
	if !ok {
		os.Exit(m.Run())
	}

	if err := dbtest.Migrate(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate test database")
	}

	pg, err := db.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to test database")
	}
	testPool = pg.Pool

	exitCode := m.Run()
	pg.Close()
	os.Exit(exitCode)
}

func setupPostgres(t *testing.T) {
	t.Helper()
	if testPool == nil {
		t.Skip("DB_HOST_TEST is not set")
	}
	truncate := func() {
		if _, err := testPool.Exec(context.Background(), dbtest.TruncateAll); err != nil {
			t.Fatalf("Failed to truncate tables: %v", err)
		}
	}
	truncate()
	t.Cleanup(truncate)
}

func seedProduct(t *testing.T, name, price string, stock int) catalog.Ref {
	t.Helper()
	p := newProduct(name, price, stock)
	_, err := testPool.Exec(context.Background(), `
		INSERT INTO products (id, name, price, category, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`, p.ID, p.Name, p.Price, string(p.Category), p.Stock)
	require.NoError(t, err)
	return p.Ref()
}

// addOne mirrors the service: hydrate the variant, then let the cart merge or append.
func addOne(ref catalog.Ref) func(c *cart.Cart) error {
	return func(c *cart.Cart) error {
		variants, err := catalog.LoadVariants(context.Background(), testPool, []catalog.Ref{ref}, false)
		if err != nil {
			return err
		}
		return c.Add(variants[ref], time.Now())
	}
}

func countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, testPool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func TestPostgresRepository_GetMissingCart(t *testing.T) {
	setupPostgres(t)
	repo := cart.NewRepository(testPool)

	c, err := repo.Get(context.Background(), cart.ForSession("nobody"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, c.ID)
	assert.True(t, c.IsEmpty())
	assert.Equal(t, 0, countRows(t, `SELECT count(*) FROM carts`))
}

func TestPostgresRepository_UpdateCreatesCartOnce(t *testing.T) {
	setupPostgres(t)
	ctx := context.Background()
	repo := cart.NewRepository(testPool)
	wine := seedProduct(t, "Malbec", "650.00", 5)
	owner := cart.ForUser(uuid.Must(uuid.NewV4()))

	first, err := repo.Update(ctx, owner, addOne(wine))
	require.NoError(t, err)
	second, err := repo.Update(ctx, owner, addOne(wine))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, countRows(t, `SELECT count(*) FROM carts WHERE user_id = $1`, owner.UserID))
	assert.Equal(t, 1, countRows(t, `SELECT count(*) FROM cart_items WHERE cart_id = $1`, first.ID))

	stored, err := repo.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 2, stored.Items[0].Quantity)
	assert.Equal(t, "Malbec", stored.Items[0].Name())
}

func TestPostgresRepository_PersistsDiff(t *testing.T) {
	setupPostgres(t)
	ctx := context.Background()
	repo := cart.NewRepository(testPool)
	owner := cart.ForSession("browser-1")
	wine := seedProduct(t, "Shiraz", "500.00", 5)
	beer := seedProduct(t, "Lager", "90.00", 5)
	gin := seedProduct(t, "Dry Gin", "800.00", 5)

	for _, ref := range []catalog.Ref{wine, beer, gin, gin} {
		_, err := repo.Update(ctx, owner, addOne(ref))
		require.NoError(t, err)
	}

	c, err := repo.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 3)
	wineID, beerID, ginID := c.Find(wine).ID, c.Find(beer).ID, c.Find(gin).ID

	_, err = repo.Update(ctx, owner, func(c *cart.Cart) error {
		if err := c.Increase(wineID, time.Now()); err != nil {
			return err
		}
		if err := c.Remove(beerID); err != nil {
			return err
		}
		return c.Decrease(ginID)
	})
	require.NoError(t, err)

	c, err = repo.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, 2, c.Find(wine).Quantity)
	assert.Nil(t, c.Find(beer))
	assert.Equal(t, 1, c.Find(gin).Quantity)
	assert.Equal(t, ginID, c.Find(gin).ID, "surviving lines keep their ids")
}

func TestPostgresRepository_FailedUpdateRollsBack(t *testing.T) {
	setupPostgres(t)
	ctx := context.Background()
	repo := cart.NewRepository(testPool)
	owner := cart.ForSession("browser-2")
	wine := seedProduct(t, "Rioja", "700.00", 5)

	_, err := repo.Update(ctx, owner, addOne(wine))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = repo.Update(ctx, owner, func(c *cart.Cart) error {
		c.Clear()
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := repo.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestPostgresRepository_CeilingHoldsAgainstStoredQuantity(t *testing.T) {
	setupPostgres(t)
	ctx := context.Background()
	repo := cart.NewRepository(testPool)
	owner := cart.ForSession("browser-3")
	wine := seedProduct(t, "Last Bottle", "900.00", 1)

	_, err := repo.Update(ctx, owner, addOne(wine))
	require.NoError(t, err)

	_, err = repo.Update(ctx, owner, addOne(wine))
	var stockErr *cart.OutOfStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 1, stockErr.Available)

	c, err := repo.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestPostgresRepository_ConcurrentFirstUpdates(t *testing.T) {
	setupPostgres(t)
	ctx := context.Background()
	repo := cart.NewRepository(testPool)
	owner := cart.ForSession("browser-4")
	beer := seedProduct(t, "Pilsner", "80.00", 10)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = repo.Update(ctx, owner, addOne(beer))
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, countRows(t, `SELECT count(*) FROM carts WHERE session_key = $1`, owner.SessionKey))

	c, err := repo.Get(ctx, owner)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, workers, c.Items[0].Quantity)
}

func TestClearItems_KeepsCartRow(t *testing.T) {
	setupPostgres(t)
	ctx := context.Background()
	repo := cart.NewRepository(testPool)
	owner := cart.ForKiosk("kiosk-1")
	beer := seedProduct(t, "Stout", "120.00", 3)

	c, err := repo.Update(ctx, owner, addOne(beer))
	require.NoError(t, err)

	require.NoError(t, cart.ClearItems(ctx, testPool, c.ID))

	after, err := repo.Get(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, c.ID, after.ID)
	assert.True(t, after.IsEmpty())
}
