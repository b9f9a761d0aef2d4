package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productCols = `id, name, description, price, category, image_url, stock, available, created_at, updated_at`

type Repo struct{ DB *pgxpool.Pool }

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		&p.ImageURL, &p.Stock, &p.Available, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, err
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *Repo) ListAvailable(ctx context.Context) ([]Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products WHERE available ORDER BY name`)
}

func (r *Repo) ListByCategory(ctx context.Context, category string) ([]Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products
		WHERE available AND category=$1 ORDER BY name`, category)
}

func (r *Repo) Search(ctx context.Context, term string) ([]Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products
		WHERE available AND (name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		ORDER BY name`, term)
}

func (r *Repo) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, description, price, category, image_url, stock, available, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.Stock, p.Available, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repo) Update(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$2, description=$3, price=$4, category=$5,
			image_url=$6, stock=$7, available=$8, updated_at=$9
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.Stock, p.Available, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, p.ID)
	}
	return nil
}

// Delete refuses to remove a product that order items still reference; the
// order_items FK is ON DELETE RESTRICT.
func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("%w: %s", ErrProductReferenced, id)
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return nil
}

func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}
