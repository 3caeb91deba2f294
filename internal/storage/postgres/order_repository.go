package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/ordercore/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"

	pgForeignKeyViolation = "23503"
)

var errOrderExists = errors.New("order already exists")

const orderColumns = `
	id, customer_name, customer_email, customer_phone,
	product_ids, product_details, total_amount, status,
	shipping_address, city, postal_code, notes,
	version, created_at, updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// rowScanner объединяет *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	productIDs, details, err := encodeOrderJSON(order)
	if err != nil {
		return domain.Order{}, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, customer_name, customer_email, customer_phone,
			product_ids, product_details, total_amount, status,
			shipping_address, city, postal_code, notes,
			version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,1,NOW(),NOW())
		RETURNING `+orderColumns,
		order.ID, order.Customer.Name, order.Customer.Email, order.Customer.Phone,
		productIDs, details, order.TotalAmount, string(order.Status),
		order.Customer.ShippingAddress, order.Customer.City, order.Customer.PostalCode, order.Customer.Notes,
	)

	created, err := scanOrder(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Order{}, errOrderExists
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query := `SELECT ` + orderColumns + ` FROM orders`
	args := make([]any, 0, 1)
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	productIDs, details, err := encodeOrderJSON(order)
	if err != nil {
		return domain.Order{}, err
	}

	// total_amount и created_at не обновляются: сумма фиксируется при создании.
	saved, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET customer_name = $1,
		    customer_email = $2,
		    customer_phone = $3,
		    product_ids = $4,
		    product_details = $5,
		    status = $6,
		    shipping_address = $7,
		    city = $8,
		    postal_code = $9,
		    notes = $10,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $11
		  AND version = $12
		RETURNING `+orderColumns,
		order.Customer.Name, order.Customer.Email, order.Customer.Phone,
		productIDs, details, string(order.Status),
		order.Customer.ShippingAddress, order.Customer.City, order.Customer.PostalCode, order.Customer.Notes,
		order.ID, order.Version,
	))
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	exists, err := r.exists(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	if !exists {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return domain.Order{}, domain.ErrOrderVersionConflict
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) exists(ctx context.Context, orderID string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func encodeOrderJSON(order domain.Order) (string, string, error) {
	ids := order.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	idsRaw, err := json.Marshal(ids)
	if err != nil {
		return "", "", fmt.Errorf("encode product ids: %w", err)
	}

	details := order.ProductDetails
	if details == nil {
		details = []domain.ProductSnapshot{}
	}
	detailsRaw, err := json.Marshal(details)
	if err != nil {
		return "", "", fmt.Errorf("encode product details: %w", err)
	}
	return string(idsRaw), string(detailsRaw), nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order      domain.Order
		status     string
		idsRaw     []byte
		detailsRaw []byte
	)
	if err := row.Scan(
		&order.ID, &order.Customer.Name, &order.Customer.Email, &order.Customer.Phone,
		&idsRaw, &detailsRaw, &order.TotalAmount, &status,
		&order.Customer.ShippingAddress, &order.Customer.City, &order.Customer.PostalCode, &order.Customer.Notes,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	if err := json.Unmarshal(idsRaw, &order.ProductIDs); err != nil {
		return domain.Order{}, fmt.Errorf("decode product ids: %w", err)
	}
	if err := json.Unmarshal(detailsRaw, &order.ProductDetails); err != nil {
		return domain.Order{}, fmt.Errorf("decode product details: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()
	order.UpdatedAt = order.UpdatedAt.UTC()
	return order, nil
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

var _ domain.OrderRepository = (*orderRepository)(nil)
