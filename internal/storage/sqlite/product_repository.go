package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

var errProductExists = errors.New("product already exists")

const productColumns = `
	id, name, description, price, category, stock, sku,
	is_available, tags, version, created_at, updated_at`

type productRepository struct {
	store *Store
}

// NewProductRepository создаёт SQLite-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{store: store}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tags, err := encodeTags(product.Tags)
	if err != nil {
		return domain.Product{}, err
	}
	now := r.store.timestamp()

	created, err := scanProduct(r.store.db.QueryRowContext(ctx, `
		INSERT INTO products (
			id, name, description, price, category, stock, sku,
			is_available, tags, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		RETURNING `+productColumns,
		product.ID, product.Name, product.Description, product.Price.StringFixed(domain.MoneyScale),
		product.Category, product.Stock, product.SKU, product.IsAvailable, tags, now, now,
	))
	if err != nil {
		if isConstraint(err, "UNIQUE") {
			return domain.Product{}, errProductExists
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.store.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

func (r *productRepository) FindMany(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	seen := make(map[string]struct{}, len(ids))
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

	return r.query(ctx, `SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders+`) ORDER BY created_at DESC, rowid DESC`, args...)
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Search)) + "%"
		conds = append(conds, `(lower(name) LIKE ? ESCAPE '\' OR lower(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	return r.query(ctx, query, args...)
}

func (r *productRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tags, err := encodeTags(product.Tags)
	if err != nil {
		return domain.Product{}, err
	}

	saved, err := scanProduct(r.store.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = ?, description = ?, price = ?, category = ?, stock = ?,
		    sku = ?, is_available = ?, tags = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
		RETURNING `+productColumns,
		product.Name, product.Description, product.Price.StringFixed(domain.MoneyScale), product.Category,
		product.Stock, product.SKU, product.IsAvailable, tags, r.store.timestamp(),
		product.ID, product.Version,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}

	exists, err := r.exists(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	if !exists {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return domain.Product{}, domain.ErrProductVersionConflict
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.store.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}
	return nil
}

// AdjustStock проверяет остаток и применяет delta одним оператором.
func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.store.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + ?, version = version + 1, updated_at = ?
		WHERE id = ? AND stock + ? >= 0
		RETURNING `+productColumns,
		delta, r.store.timestamp(), id, delta,
	))
	if err == nil {
		return product, nil
	}
	if isConstraint(err, "CHECK") {
		return domain.Product{}, domain.ErrInsufficientStock
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("adjust stock: %w", err)
	}

	exists, err := r.exists(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if !exists {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return domain.Product{}, domain.ErrInsufficientStock
}

func (r *productRepository) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) exists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.store.db.QueryRowContext(ctx, `SELECT id FROM products WHERE id = ?`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check product exists: %w", err)
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(raw), nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product              domain.Product
		price, tags          string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&product.ID, &product.Name, &product.Description, &price, &product.Category,
		&product.Stock, &product.SKU, &product.IsAvailable, &tags,
		&product.Version, &createdAt, &updatedAt,
	); err != nil {
		return domain.Product{}, err
	}

	var err error
	if product.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Product{}, fmt.Errorf("decode price %q: %w", price, err)
	}
	if err := json.Unmarshal([]byte(tags), &product.Tags); err != nil {
		return domain.Product{}, fmt.Errorf("decode tags: %w", err)
	}
	if len(product.Tags) == 0 {
		product.Tags = nil
	}
	if product.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return domain.Product{}, err
	}
	if product.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// isConstraint распознаёт нарушение ограничения по тексту ошибки драйвера,
// например "constraint failed: UNIQUE constraint failed: products.id".
func isConstraint(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ domain.ProductRepository = (*productRepository)(nil)
