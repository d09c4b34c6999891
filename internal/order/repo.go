package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Commit(ctx context.Context, d *Draft, userID, orderNumber, idemKey string) (*Receipt, error)
	Cancel(ctx context.Context, orderID string) error
	GetByID(ctx context.Context, id string) (*Order, []Item, error)
	GetItems(ctx context.Context, orderID string) ([]Item, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, next Status) error
}

type PGRepo struct{ db *pgxpool.Pool }

func NewPGRepo(db *pgxpool.Pool) *PGRepo { return &PGRepo{db: db} }

// Commit persists the draft as one transaction: order header, items with
// conditional stock decrements, then the cart clear. Any stock shortfall
// rolls the whole thing back; nothing is partially visible.
func (r *PGRepo) Commit(ctx context.Context, d *Draft, userID, orderNumber, idemKey string) (*Receipt, error) {
	if idemKey != "" {
		rc, err := r.findByIdempotencyKey(ctx, idemKey)
		if err != nil {
			return nil, err
		}
		if rc != nil {
			return rc, nil
		}
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storageErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	orderID := uuid.NewString()
	if _, err := tx.Exec(ctx, `
    INSERT INTO orders (id, order_number, user_id, status,
                        subtotal, tax_amount, shipping_amount, total_amount,
                        shipping_address, billing_address,
                        payment_method, payment_details, notes, idempotency_key,
                        created_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),NOW(),NOW())
  `, orderID, orderNumber, userID, StatusPending,
		d.Subtotal, d.TaxAmount, d.ShippingAmount, d.TotalAmount,
		d.ShippingAddress, d.BillingAddress,
		d.Payment.Method, d.Payment, d.Notes, idemKey); err != nil {
		return nil, storageErr(err)
	}

	// Lock each product row before the decrement so two concurrent
	// checkouts on the same product serialize; the loser sees the reduced
	// stock and fails instead of overselling. Shortfalls are collected
	// across all items so the caller gets the full picture in one error.
	var shortages []StockShortage
	for _, it := range d.Items {
		if _, err := tx.Exec(ctx, `
      INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, total_price, variant_details)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, uuid.NewString(), orderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.TotalPrice, it.Variant); err != nil {
			return nil, storageErr(err)
		}

		var stock int
		err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Quantity, Available: 0})
			continue
		}
		if err != nil {
			return nil, storageErr(err)
		}
		if stock < it.Quantity {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Quantity, Available: stock})
			continue
		}
		if _, err := tx.Exec(ctx, `
      UPDATE products SET stock = stock - $2, updated_at = NOW() WHERE id = $1
    `, it.ProductID, it.Quantity); err != nil {
			return nil, storageErr(err)
		}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages} // rollback via defer
	}

	// Cart clear is the last write of the same transaction: a failed
	// commit leaves the cart intact for a retry.
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID); err != nil {
		return nil, storageErr(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr(err)
	}
	return &Receipt{OrderID: orderID, OrderNumber: orderNumber, Total: d.TotalAmount}, nil
}

func (r *PGRepo) findByIdempotencyKey(ctx context.Context, key string) (*Receipt, error) {
	var rc Receipt
	err := r.db.QueryRow(ctx, `
    SELECT id, order_number, total_amount::text FROM orders WHERE idempotency_key=$1
  `, key).Scan(&rc.OrderID, &rc.OrderNumber, &rc.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &rc, nil
}

// Cancel flips the order to cancelled and restores every item's stock in
// one transaction. The status row is locked first so a concurrent cancel
// or fulfilment transition cannot race the restock.
func (r *PGRepo) Cancel(ctx context.Context, orderID string) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return storageErr(err)
	}
	if status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !Cancellable(status) {
		return ErrInvalidTransition
	}

	if _, err := tx.Exec(ctx, `
    UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1
  `, orderID, StatusCancelled); err != nil {
		return storageErr(err)
	}

	rows, err := tx.Query(ctx, `SELECT product_id, quantity FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return storageErr(err)
	}
	type line struct {
		pid string
		qty int
	}
	var lines []line
	for rows.Next() {
		var l line
		if err := rows.Scan(&l.pid, &l.qty); err != nil {
			rows.Close()
			return storageErr(err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return storageErr(err)
	}

	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
      UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1
    `, l.pid, l.qty); err != nil {
			return storageErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

const orderColumns = `
    id, order_number, user_id, status,
    subtotal::text, tax_amount::text, shipping_amount::text, total_amount::text,
    shipping_address, billing_address, payment_details, notes, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.TotalAmount,
		&o.ShippingAddress, &o.BillingAddress, &o.Payment, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, []Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, storageErr(err)
	}
	items, err := r.GetItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, items, nil
}

func (r *PGRepo) GetItems(ctx context.Context, orderID string) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.Query(ctx, `
    SELECT id, order_id, product_id, product_name, quantity, unit_price::text, total_price::text, variant_details
    FROM order_items WHERE order_id=$1
  `, orderID)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.Variant); err != nil {
			return nil, storageErr(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return items, nil
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.Query(ctx, `
    SELECT `+orderColumns+` FROM orders WHERE user_id=$1
    ORDER BY created_at DESC LIMIT $2 OFFSET $3
  `, userID, limit, offset)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// UpdateStatus performs forward fulfilment transitions only. Cancelling
// moves inventory and must go through Cancel.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, next Status) error {
	if next == StatusCancelled {
		return ErrInvalidTransition
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storageErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var cur Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return storageErr(err)
	}
	if !CanTransition(cur, next) {
		return ErrInvalidTransition
	}
	if _, err := tx.Exec(ctx, `
    UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1
  `, id, next); err != nil {
		return storageErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

func storageErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "order_number") {
		return ErrDuplicateOrderNumber
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
