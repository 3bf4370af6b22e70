package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	"gmart-backend/internal/domain"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

func (r *PostgresRepo) init() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		price BIGINT NOT NULL CHECK (price >= 0),
		created_at TIMESTAMPTZ
	);`)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		external_order_id TEXT UNIQUE,
		customer_email TEXT,
		items TEXT,
		amount_total BIGINT,
		currency TEXT,
		status TEXT,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);`)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		name TEXT,
		email TEXT UNIQUE,
		password_hash TEXT,
		role TEXT,
		created_at TIMESTAMPTZ
	);`)
	return err
}

const productCols = `id,name,description,price,created_at`

func (r *PostgresRepo) PutProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO products (id,name,description,price,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET name=$2,description=$3,price=$4`,
		p.ID, p.Name, p.Description, p.Price, p.CreatedAt)
	return err
}

func (r *PostgresRepo) GetProduct(ctx context.Context, id string) (*domain.Product, bool) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CreatedAt)
	if err != nil {
		return nil, false
	}
	return &p, true
}

func (r *PostgresRepo) FindProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productCols+` FROM products WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productCols+` FROM products ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) DeleteProduct(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const orderCols = `order_id,external_order_id,customer_email,items,amount_total,currency,status,created_at,updated_at`

func (r *PostgresRepo) PutOrder(ctx context.Context, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO orders (`+orderCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (order_id) DO UPDATE SET external_order_id=$2,customer_email=$3,items=$4,amount_total=$5,currency=$6,status=$7,updated_at=$9`,
		o.OrderID, o.ExternalOrderID, o.CustomerEmail, string(items), o.AmountTotal, o.Currency, string(o.Status), o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetOrder(ctx context.Context, id string) (*domain.Order, bool) {
	return r.getOrderWhere(ctx, `order_id=$1`, id)
}

func (r *PostgresRepo) GetOrderByExternalID(ctx context.Context, externalID string) (*domain.Order, bool) {
	return r.getOrderWhere(ctx, `external_order_id=$1`, externalID)
}

func (r *PostgresRepo) getOrderWhere(ctx context.Context, where string, arg string) (*domain.Order, bool) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE `+where, arg))
	if err != nil {
		return nil, false
	}
	return o, true
}

// MarkPaid flips a pending order to paid. updated_at only moves on the first
// transition. A missing order yields (nil, nil).
func (r *PostgresRepo) MarkPaid(ctx context.Context, externalID string, at time.Time) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `UPDATE orders SET status=$2,
		updated_at=CASE WHEN status=$2 THEN updated_at ELSE $3 END
		WHERE external_order_id=$1
		RETURNING `+orderCols, externalID, string(domain.OrderPaid), at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepo) ListOrders(ctx context.Context, page, pageSize int) ([]domain.Order, int) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0
	}
	defer rows.Close()
	out := make([]domain.Order, 0, pageSize)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			continue
		}
		out = append(out, *o)
	}
	var total int
	_ = r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders`).Scan(&total)
	return out, total
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*domain.Order, error) {
	var o domain.Order
	var items string
	err := s.Scan(&o.OrderID, &o.ExternalOrderID, &o.CustomerEmail, &items, &o.AmountTotal, &o.Currency, (*string)(&o.Status), &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PostgresRepo) PutUser(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (user_id,name,email,password_hash,role,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id) DO UPDATE SET name=$2,email=$3,password_hash=$4,role=$5`,
		u.UserID, u.Name, strings.ToLower(u.Email), u.PasswordHash, string(u.Role), u.CreatedAt)
	return err
}

func (r *PostgresRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, bool) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT user_id,name,email,password_hash,role,created_at FROM users WHERE email=$1`, strings.ToLower(email)).
		Scan(&u.UserID, &u.Name, &u.Email, &u.PasswordHash, (*string)(&u.Role), &u.CreatedAt)
	if err != nil {
		return nil, false
	}
	return &u, true
}
