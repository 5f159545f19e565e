package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	orderSelect = `SELECT o.id, o.user_id, o.address_id, o.status, o.payment_status, o.payment_method,
		o.subtotal, o.shipping, o.tax, o.total, o.notes, o.created_at, o.updated_at,
		u.id, u.first_name, u.last_name, u.email, u.phone
		FROM orders o JOIN users u ON u.id = o.user_id`

	getOrderSQL         = orderSelect + ` WHERE o.id = $1`
	listOrdersSQL       = orderSelect + ` WHERE ($1::text IS NULL OR o.status = $1) ORDER BY o.created_at DESC`
	listUserOrdersSQL   = orderSelect + ` WHERE o.user_id = $1 ORDER BY o.created_at DESC`
	defaultAddressSQL   = `SELECT id FROM addresses WHERE user_id = $1 AND is_default ORDER BY created_at LIMIT 1`
	placeholderAddrSQL  = `SELECT id FROM addresses WHERE user_id = $1 AND street = $2 ORDER BY created_at LIMIT 1`
	clearOrderedCartSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`

	createOrderSQL = `INSERT INTO orders (id, user_id, address_id, status, payment_status, payment_method,
		subtotal, shipping, tax, total, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	createOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, price, color, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	orderItemsSQL = `SELECT oi.order_id, oi.id, oi.product_id, oi.variant_id, oi.quantity, oi.price,
		oi.color, oi.size, p.id, p.name, p.price, ` + mainImageSubquery + `
		FROM order_items oi JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1) ORDER BY oi.order_id, p.name`

	takeProductStockSQL    = `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1 AND stock >= $2`
	takeVariantStockSQL    = `UPDATE product_variants SET stock = stock - $2 WHERE id = $1 AND stock >= $2`
	restoreProductStockSQL = `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`
	restoreVariantStockSQL = `UPDATE product_variants SET stock = stock + $2 WHERE id = $1`

	updateOrderStatusSQL  = `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2 AND status <> 'CANCELLED'`
	updatePaymentSQL      = `UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`
	updateOrderNotesSQL   = `UPDATE orders SET notes = $2, updated_at = now() WHERE id = $1`
	lockOrderSQL          = `SELECT status, notes FROM orders WHERE id = $1 FOR UPDATE`
	cancelledItemsSQL     = `SELECT product_id, variant_id, quantity FROM order_items WHERE order_id = $1`
	markOrderCancelledSQL = `UPDATE orders SET status = $2, notes = $3, updated_at = now() WHERE id = $1`

	addressColumns = `id, user_id, street, city, state, zip_code, country, is_default, created_at`

	createAddressSQL = `INSERT INTO addresses (id, user_id, street, city, state, zip_code, country, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	listAddressesSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE user_id = $1 ORDER BY is_default DESC, created_at DESC`

	lockAddressSQL  = `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 AND id = $2 FOR UPDATE`
	clearDefaultSQL = `UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`
	markDefaultSQL  = `UPDATE addresses SET is_default = TRUE WHERE id = $1`
)

var (
	_ order.Repository        = (*OrderRepository)(nil)
	_ order.AddressRepository = (*AddressRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	db DB
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Place persists a new order together with its items. Stock is taken with a
// conditional decrement so concurrent orders can never drive it negative.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		addressID, err := orderAddress(ctx, tx, o.UserID)
		if err != nil {
			return err
		}
		o.AddressID = addressID

		err = tx.QueryRow(ctx, createOrderSQL,
			o.ID, o.UserID, o.AddressID, o.Status, o.PaymentStatus, o.PaymentMethod,
			o.Subtotal, o.Shipping, o.Tax, o.Total, o.Notes,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}

		productIDs := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			_, err := tx.Exec(ctx, createOrderItemSQL,
				it.ID, o.ID, it.ProductID, it.VariantID, it.Quantity, it.Price, it.Color, it.Size,
			)
			if err != nil {
				return fmt.Errorf("creating order item: %w", err)
			}

			sql, target := takeProductStockSQL, it.ProductID
			if it.VariantID != nil {
				sql, target = takeVariantStockSQL, *it.VariantID
			}
			tag, err := tx.Exec(ctx, sql, target, it.Quantity)
			if err != nil {
				return fmt.Errorf("taking stock of %q: %w", target, err)
			}
			if tag.RowsAffected() == 0 {
				return &order.InsufficientStockError{ProductID: it.ProductID}
			}
			productIDs = append(productIDs, it.ProductID)
		}

		if _, err := tx.Exec(ctx, clearOrderedCartSQL, o.UserID, productIDs); err != nil {
			return fmt.Errorf("clearing ordered cart items: %w", err)
		}
		return nil
	})
}

// orderAddress picks the user's default address, falling back to a per-user
// placeholder record that is created on first use.
func orderAddress(ctx context.Context, tx pgx.Tx, userID int64) (string, error) {
	var id string
	err := tx.QueryRow(ctx, defaultAddressSQL, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("finding default address: %w", err)
	}

	err = tx.QueryRow(ctx, placeholderAddrSQL, userID, order.PlaceholderStreet).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("finding placeholder address: %w", err)
	}

	a := order.Placeholder(uuid.NewString(), userID)
	_, err = tx.Exec(ctx, createAddressSQL, a.ID, a.UserID, a.Street, a.City, a.State, a.ZipCode, a.Country, false)
	if err != nil {
		return "", fmt.Errorf("creating placeholder address: %w", err)
	}
	return a.ID, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		return nil, notFound(err, order.ErrNotFound)
	}
	list := []order.Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *OrderRepository) List(ctx context.Context, status *order.Status) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL, status)
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]order.Order, error) {
	return r.list(ctx, listUserOrdersSQL, userID)
}

func (r *OrderRepository) list(ctx context.Context, sql string, arg any) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.attachItems(ctx, list); err != nil {
		return nil, err
	}
	return nonNil(list), nil
}

func (r *OrderRepository) attachItems(ctx context.Context, list []order.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	rows, err := r.db.Query(ctx, orderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	byOrder := make(map[string][]order.Item, len(list))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range list {
		list[i].Items = nonNil(byOrder[list[i].ID])
	}
	return nil
}

// UpdateStatus only applies when the order still has status from, so two
// concurrent updates cannot both succeed from the same starting point.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) error {
	tag, err := r.db.Exec(ctx, updateOrderStatusSQL, id, from, to)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	return affected(tag, order.ErrStatusChanged)
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, id string, status order.PaymentStatus) error {
	return r.update(ctx, updatePaymentSQL, id, status)
}

func (r *OrderRepository) UpdateNotes(ctx context.Context, id, notes string) error {
	return r.update(ctx, updateOrderNotesSQL, id, notes)
}

func (r *OrderRepository) update(ctx context.Context, sql, id string, value any) error {
	tag, err := r.db.Exec(ctx, sql, id, value)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", id, err)
	}
	return affected(tag, order.ErrNotFound)
}

// Cancel re-checks the status under a row lock so a concurrent status change
// or second cancellation cannot restore stock twice.
func (r *OrderRepository) Cancel(ctx context.Context, id, reason string, at time.Time) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		var (
			status order.Status
			notes  string
		)
		if err := tx.QueryRow(ctx, lockOrderSQL, id).Scan(&status, &notes); err != nil {
			return notFound(err, order.ErrNotFound)
		}
		if !status.Open() {
			return order.ErrNotCancellable
		}

		notes = order.AppendCancellation(notes, reason, at)
		if _, err := tx.Exec(ctx, markOrderCancelledSQL, id, order.StatusCancelled, notes); err != nil {
			return fmt.Errorf("cancelling order %q: %w", id, err)
		}

		rows, err := tx.Query(ctx, cancelledItemsSQL, id)
		if err != nil {
			return fmt.Errorf("listing cancelled items: %w", err)
		}
		items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
			var it order.Item
			err := row.Scan(&it.ProductID, &it.VariantID, &it.Quantity)
			return it, err
		})
		if err != nil {
			return fmt.Errorf("listing cancelled items: %w", err)
		}

		for _, it := range items {
			sql, target := restoreProductStockSQL, it.ProductID
			if it.VariantID != nil {
				sql, target = restoreVariantStockSQL, *it.VariantID
			}
			if _, err := tx.Exec(ctx, sql, target, it.Quantity); err != nil {
				return fmt.Errorf("restoring stock of %q: %w", target, err)
			}
		}
		return nil
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o order.Order
		c order.Customer
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.AddressID, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Total, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
	)
	o.User = &c
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	it.Product = new(product.Summary)
	err := row.Scan(
		&it.OrderID, &it.ID, &it.ProductID, &it.VariantID, &it.Quantity, &it.Price,
		&it.Color, &it.Size, &it.Product.ID, &it.Product.Name, &it.Product.Price, &it.Product.MainImage,
	)
	return it, err
}

// AddressRepository implements order.AddressRepository backed by PostgreSQL.
type AddressRepository struct {
	db DB
}

func NewAddressRepository(db DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) Create(ctx context.Context, a *order.Address) error {
	err := r.db.QueryRow(ctx, createAddressSQL,
		a.ID, a.UserID, a.Street, a.City, a.State, a.ZipCode, a.Country, a.IsDefault,
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating address: %w", err)
	}
	return nil
}

func (r *AddressRepository) ListByUser(ctx context.Context, userID int64) ([]order.Address, error) {
	rows, err := r.db.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanAddress)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	return nonNil(list), nil
}

func (r *AddressRepository) SetDefault(ctx context.Context, userID int64, id string) (*order.Address, error) {
	var a order.Address
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, lockAddressSQL, userID, id)
		if err != nil {
			return fmt.Errorf("getting address %q: %w", id, err)
		}
		a, err = pgx.CollectExactlyOneRow(rows, scanAddress)
		if err != nil {
			return notFound(err, order.ErrAddressNotFound)
		}
		if _, err := tx.Exec(ctx, clearDefaultSQL, userID); err != nil {
			return fmt.Errorf("clearing default address: %w", err)
		}
		if _, err := tx.Exec(ctx, markDefaultSQL, id); err != nil {
			return fmt.Errorf("marking default address: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.IsDefault = true
	return &a, nil
}

func scanAddress(row pgx.CollectableRow) (order.Address, error) {
	var a order.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Street, &a.City, &a.State, &a.ZipCode, &a.Country, &a.IsDefault, &a.CreatedAt)
	return a, err
}
