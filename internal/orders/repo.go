package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ovenfresh/storefront/internal/catalog"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) WithinOrder(ctx context.Context, fn func(tx OrderTx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&orderTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type orderTx struct{ tx pgx.Tx }

// Product reads the row FOR UPDATE so concurrent reservations against the
// same product serialize for the rest of the transaction.
func (t *orderTx) Product(ctx context.Context, id string) (*catalog.Product, error) {
	var p catalog.Product
	err := t.tx.QueryRow(ctx, `
		SELECT id, name, description, price, category, image_url, stock, available, created_at, updated_at
		FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
			&p.ImageURL, &p.Stock, &p.Available, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReserveStock decrements conditionally; the stock >= qty guard in the UPDATE
// keeps the counter non-negative even without the FOR UPDATE pre-read.
func (t *orderTx) ReserveStock(ctx context.Context, productID string, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		var name string
		var stock int
		if err := t.tx.QueryRow(ctx,
			`SELECT name, stock FROM products WHERE id=$1`, productID).Scan(&name, &stock); err != nil {
			return fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
		}
		return &InsufficientStockError{ProductName: name, Required: qty, Available: stock}
	}
	return nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *Order) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, customer_name, customer_email, customer_phone,
			shipping_address, payment_method, total_amount, status, payment_ref, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
		o.ShippingAddress, o.PaymentMethod, o.TotalAmount, o.Status, o.PaymentRef,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	// position keeps retrieval in cart order
	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, position, product_id, product_name, quantity, unit_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, o.ID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.Subtotal); err != nil {
			return err
		}
	}
	return nil
}

const orderCols = `id, customer_name, customer_email, customer_phone,
	shipping_address, payment_method, total_amount, status, payment_ref, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone,
		&o.ShippingAddress, &o.PaymentMethod, &o.TotalAmount, &o.Status, &o.PaymentRef,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, []*Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *Repo) ListOrders(ctx context.Context) ([]Order, error) {
	return r.listOrders(ctx, `SELECT `+orderCols+` FROM orders ORDER BY created_at DESC`)
}

func (r *Repo) ListOrdersByEmail(ctx context.Context, email string) ([]Order, error) {
	return r.listOrders(ctx, `SELECT `+orderCols+` FROM orders
		WHERE customer_email=$1 ORDER BY created_at DESC`, email)
}

func (r *Repo) listOrders(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	refs := make([]*Order, len(out))
	for i := range out {
		refs[i] = &out[i]
	}
	if err := r.attachItems(ctx, refs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) attachItems(ctx context.Context, os []*Order) error {
	if len(os) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(os))
	ids := make([]string, 0, len(os))
	for _, o := range os {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return err
		}
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, s Status) (*Order, error) {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`,
		id, s, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return r.GetOrder(ctx, id)
}

func (r *Repo) RecordPayment(ctx context.Context, id, paymentRef string) (*Order, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET payment_ref=$2, status=$3, updated_at=$4 WHERE id=$1`,
		id, paymentRef, StatusConfirmed, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return r.GetOrder(ctx, id)
}
