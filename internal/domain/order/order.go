package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/product"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Open reports whether the order can still be edited or cancelled.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusProcessing
}

var fulfilmentStage = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// CanMoveTo reports whether an admin status update from s to next is allowed.
// Fulfilment only moves forward, and cancellation goes through Cancel so the
// stock is restored exactly once.
func (s Status) CanMoveTo(next Status) bool {
	from, ok := fulfilmentStage[s]
	if !ok {
		return false
	}
	to, ok := fulfilmentStage[next]
	return ok && to >= from
}

// PaymentStatus is the settlement state of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCreditCard     PaymentMethod = "CreditCard"
	PaymentPayPal         PaymentMethod = "PayPal"
	PaymentCashOnDelivery PaymentMethod = "CashOnDelivery"
	PaymentBankTransfer   PaymentMethod = "BankTransfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCreditCard, PaymentPayPal, PaymentCashOnDelivery, PaymentBankTransfer:
		return true
	}
	return false
}

// Sentinel errors for order operations.
var (
	ErrNotFound             = apperr.NotFound("Order not found")
	ErrAddressNotFound      = apperr.NotFound("Address not found")
	ErrEmptyItems           = apperr.BadRequest("items required")
	ErrInvalidQuantity      = apperr.BadRequest("quantity must be greater than 0")
	ErrInvalidPrice         = apperr.BadRequest("price must not be negative")
	ErrPricePrecision       = apperr.BadRequest("price must have at most 2 decimal places")
	ErrShippingRequired     = apperr.BadRequest("shippingAddress is required")
	ErrInvalidPaymentMethod = apperr.BadRequest("paymentMethod must be one of: CreditCard, PayPal, CashOnDelivery, BankTransfer")
	ErrInvalidStatus        = apperr.BadRequest("Invalid order status")
	ErrInvalidPaymentStatus = apperr.BadRequest("Invalid payment status")
	ErrCancelViaStatus      = apperr.BadRequest("Use the cancel endpoint to cancel an order")
	ErrStatusChanged        = apperr.Conflict("Order status was changed by another request")
	ErrNotCancellable       = apperr.BadRequest("Cannot cancel order that is not pending or processing")
	ErrNotEditable          = apperr.BadRequest("Cannot update order that is not pending or processing")
	ErrReasonRequired       = apperr.BadRequest("Cancellation reason is required")
	ErrAccessDenied         = apperr.Forbidden("Access denied")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("Product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Kind() apperr.Kind { return apperr.KindNotFound }

// ProductUnavailableError indicates a requested product is inactive.
type ProductUnavailableError struct {
	Name string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("Product %s is not available", e.Name)
}

func (e *ProductUnavailableError) Kind() apperr.Kind { return apperr.KindBadRequest }

// InsufficientStockError indicates a line asks for more than is in stock.
type InsufficientStockError struct {
	ProductID string
	Name      string
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("Insufficient stock for product %s", name)
}

func (e *InsufficientStockError) Kind() apperr.Kind { return apperr.KindBadRequest }

// StatusTransitionError rejects a status update that is not a forward
// fulfilment step.
type StatusTransitionError struct {
	From Status
	To   Status
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("Cannot change order status from %s to %s", e.From, e.To)
}

func (e *StatusTransitionError) Kind() apperr.Kind { return apperr.KindBadRequest }

// Order is a placed customer order.
type Order struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"userId"`
	AddressID     string          `json:"addressId"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Shipping      decimal.Decimal `json:"shipping"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	Items         []Item          `json:"items"`
	User          *Customer       `json:"user,omitempty"`
}

// Item is an order line with the unit price captured at purchase time.
type Item struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"orderId"`
	ProductID string           `json:"productId"`
	VariantID *string          `json:"variantId,omitempty"`
	Quantity  int              `json:"quantity"`
	Price     decimal.Decimal  `json:"price"`
	Color     string           `json:"color,omitempty"`
	Size      string           `json:"size,omitempty"`
	Product   *product.Summary `json:"product,omitempty"`
}

// Customer is the user projection embedded in orders.
type Customer struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     *string `json:"phone,omitempty"`
}

// Address is an entry in a user's address book.
type Address struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zipCode"`
	Country   string    `json:"country"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlaceholderStreet marks the per-user address orders fall back to when the
// user has no default address.
const PlaceholderStreet = "Default Order Address"

// Placeholder returns the fallback shipping address record for userID.
func Placeholder(id string, userID int64) Address {
	return Address{
		ID:      id,
		UserID:  userID,
		Street:  PlaceholderStreet,
		City:    "Default City",
		State:   "Default State",
		ZipCode: "00000",
		Country: "Default Country",
	}
}

// AppendCancellation records a cancellation reason in order notes.
func AppendCancellation(notes, reason string, at time.Time) string {
	return strings.TrimSpace(fmt.Sprintf("%s\n\nCancellation Reason: %s\nCancelled on: %s",
		notes, reason, at.UTC().Format(time.RFC3339)))
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place stores o in one transaction: it resolves the shipping address
	// record, inserts the order and its items, decrements stock with a
	// guard against going negative and removes the ordered products from
	// the user's cart. A failed guard yields *InsufficientStockError.
	Place(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, status *Status) ([]Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	// UpdateStatus moves the order from one status to another. It returns
	// ErrStatusChanged when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to Status) error
	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) error
	UpdateNotes(ctx context.Context, id, notes string) error
	// Cancel locks the order, re-checks that it is open, marks it cancelled
	// with the reason appended to its notes and restores the stock of every
	// item, all in one transaction.
	Cancel(ctx context.Context, id, reason string, at time.Time) error
}

// AddressRepository defines persistence operations for the address book.
type AddressRepository interface {
	Create(ctx context.Context, a *Address) error
	// ListByUser returns the default address first, then newest first.
	ListByUser(ctx context.Context, userID int64) ([]Address, error)
	// SetDefault clears every default of the user and marks id as default in
	// one transaction.
	SetDefault(ctx context.Context, userID int64, id string) (*Address, error)
}
