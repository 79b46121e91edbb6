package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/Facubm01/ocaso/internal/domain"
)

// lockNotAvailable is the SQLSTATE Postgres raises when lock_timeout
// expires while waiting on a row lock.
const lockNotAvailable = "55P03"

// PostgresStore implements ProductCatalog and InventoryStore on
// Postgres. Variant locks are plain row locks taken with
// SELECT ... FOR UPDATE inside the checkout transaction.
type PostgresStore struct {
	pool     *pgxpool.Pool
	lockWait time.Duration
}

// NewPostgresStore connects to databaseURL and verifies the
// connection. lockWait <= 0 falls back to DefaultLockWait.
func NewPostgresStore(ctx context.Context, databaseURL string, lockWait time.Duration) (*PostgresStore, error) {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, lockWait: lockWait}, nil
}

// RunMigrations applies every pending migration from migrationsDir.
func RunMigrations(databaseURL, migrationsDir string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsDir),
		"pgx",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// GetProduct implements ProductCatalog.
func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, description, price::text, discount_pct, category_id, image_id
		FROM products
		WHERE id = $1
	`
	return scanProduct(s.pool.QueryRow(ctx, query, id))
}

type pgxRow interface {
	Scan(dest ...any) error
}

func scanProduct(row pgxRow) (*domain.Product, error) {
	var (
		p     domain.Product
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.DiscountPct, &p.CategoryID, &p.ImageID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	p.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	return &p, nil
}

// ListAvailableProducts implements ProductCatalog.
func (s *PostgresStore) ListAvailableProducts(ctx context.Context, categoryID *int64) ([]*domain.Product, error) {
	query := `
		SELECT p.id, p.name, p.description, p.price::text, p.discount_pct, p.category_id, p.image_id
		FROM products p
		WHERE EXISTS (
			SELECT 1 FROM product_variants v
			WHERE v.product_id = p.id AND v.stock > 0
		)
	`
	args := []any{}
	if categoryID != nil {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, *categoryID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check category: %w", err)
		}
		if !exists {
			return nil, ErrCategoryNotFound
		}
		query += ` AND p.category_id = $1`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY p.id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

// ListVariants implements ProductCatalog.
func (s *PostgresStore) ListVariants(ctx context.Context, productID int64) ([]domain.Variant, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return nil, ErrProductNotFound
	}

	rows, err := s.pool.Query(ctx,
		`SELECT product_id, size, stock FROM product_variants WHERE product_id = $1`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	var variants []domain.Variant
	for rows.Next() {
		var (
			v    domain.Variant
			size string
		)
		if err := rows.Scan(&v.ProductID, &size, &v.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan variant: %w", err)
		}
		v.Size = domain.Size(size)
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	sort.Slice(variants, func(i, j int) bool { return variants[i].Size.Order() < variants[j].Size.Order() })
	return variants, nil
}

// ListCategories implements ProductCatalog.
func (s *PostgresStore) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

// Begin implements InventoryStore. The transaction's lock_timeout is
// set locally so a blocked FOR UPDATE fails instead of waiting
// forever.
func (s *PostgresStore) Begin(ctx context.Context) (InventoryTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockWait.Milliseconds()))
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("failed to set lock timeout: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

type postgresTx struct {
	tx pgx.Tx
}

// LockVariant implements InventoryTx via SELECT ... FOR UPDATE.
func (t *postgresTx) LockVariant(ctx context.Context, key domain.VariantKey) (*domain.Variant, error) {
	var stock int
	err := t.tx.QueryRow(ctx,
		`SELECT stock FROM product_variants WHERE product_id = $1 AND size = $2 FOR UPDATE`,
		key.ProductID, string(key.Size)).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrVariantNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return nil, ErrLockTimeout
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock variant %s: %w", key, err)
	}
	return &domain.Variant{ProductID: key.ProductID, Size: key.Size, Stock: stock}, nil
}

// SaveVariant implements InventoryTx. The row is already locked by
// this transaction, so the update cannot block.
func (t *postgresTx) SaveVariant(ctx context.Context, v *domain.Variant) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE product_variants SET stock = $3 WHERE product_id = $1 AND size = $2`,
		v.ProductID, string(v.Size), v.Stock)
	if err != nil {
		return fmt.Errorf("failed to update variant %s: %w", v.Key(), err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// Commit implements InventoryTx.
func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

// Rollback implements InventoryTx.
func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
