package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/events"
	"github.com/xenking/storefront/internal/queue"
)

// LineInput is one requested order line.
type LineInput struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
	Color     string
	Size      string
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	// UserID is the customer. Zero means the caller. Only admins may place
	// orders for someone else.
	UserID          int64
	Items           []LineInput
	ShippingAddress string
	PaymentMethod   PaymentMethod
	TotalAmount     decimal.Decimal
	Notes           string
}

// AddressInput holds the fields of a new address.
type AddressInput struct {
	Street  string
	City    string
	State   string
	ZipCode string
	Country string
}

// UserLookup loads customers.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// ProductLookup loads products with their variants.
type ProductLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// ProductCache drops cached catalog entries after stock changes.
type ProductCache interface {
	Invalidate(ctx context.Context, ids ...string)
}

type noCache struct{}

func (noCache) Invalidate(context.Context, ...string) {}

// Jobs enqueues background work.
type Jobs interface {
	Add(job queue.Job) string
}

// Service encapsulates the order lifecycle and the address book.
type Service struct {
	orders    Repository
	addresses AddressRepository
	users     UserLookup
	products  ProductLookup
	cache     ProductCache
	events    events.Publisher
	jobs      Jobs
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	orders Repository,
	addresses AddressRepository,
	users UserLookup,
	products ProductLookup,
	cache ProductCache,
	publisher events.Publisher,
	jobs Jobs,
) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if cache == nil {
		cache = noCache{}
	}
	return &Service{
		orders:    orders,
		addresses: addresses,
		users:     users,
		products:  products,
		cache:     cache,
		events:    publisher,
		jobs:      jobs,
		now:       time.Now,
	}
}

type stockKey struct {
	productID string
	variantID string
}

// Create validates the request against the catalog, checks the declared
// total and places the order. Stock, cart and address changes happen in
// one transaction inside the repository.
func (s *Service) Create(ctx context.Context, actor user.Actor, req PlaceOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if strings.TrimSpace(req.ShippingAddress) == "" {
		return nil, ErrShippingRequired
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}
	userID := req.UserID
	if userID == 0 {
		userID = actor.UserID
	}
	if !actor.CanAccess(userID) {
		return nil, ErrAccessDenied
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if item.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
		if !item.Price.Equal(item.Price.Round(2)) {
			return nil, ErrPricePrecision
		}
		ids = append(ids, item.ProductID)
	}

	customer, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		productMap[fetched[i].ID] = &fetched[i]
	}

	o := &Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		PaymentMethod: req.PaymentMethod,
		Items:         make([]Item, 0, len(req.Items)),
	}

	// Repeated lines for the same stock unit are checked against their sum.
	requested := make(map[stockKey]int, len(req.Items))
	lines := make([]pricing.Line, 0, len(req.Items))
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		if !p.IsActive {
			return nil, &ProductUnavailableError{Name: p.Name}
		}
		available, variant, err := p.ResolveStock(item.Color, item.Size)
		if err != nil {
			return nil, err
		}

		key := stockKey{productID: p.ID}
		line := Item{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			ProductID: p.ID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Color:     strings.TrimSpace(item.Color),
			Size:      strings.TrimSpace(item.Size),
		}
		if variant != nil {
			id := variant.ID
			key.variantID = id
			line.VariantID = &id
			line.Color, line.Size = variant.Color, variant.Size
		}
		requested[key] += item.Quantity
		if available < requested[key] {
			return nil, &InsufficientStockError{ProductID: p.ID, Name: p.Name}
		}

		o.Items = append(o.Items, line)
		lines = append(lines, pricing.Line{UnitPrice: item.Price, Quantity: item.Quantity})
	}

	summary := pricing.Calculate(lines)
	if err := pricing.VerifyTotal(summary, req.TotalAmount); err != nil {
		return nil, err
	}
	o.Subtotal = summary.Subtotal
	o.Shipping = summary.Shipping
	o.Tax = summary.Tax
	o.Total = summary.Total.Round(2)

	o.Notes = req.Notes
	if strings.TrimSpace(o.Notes) == "" {
		o.Notes = fmt.Sprintf("Shipping Address: %s\nPayment Method: %s", req.ShippingAddress, req.PaymentMethod)
	}

	if err := s.orders.Place(ctx, o); err != nil {
		return nil, errors.Wrap(err, "place order")
	}
	s.cache.Invalidate(ctx, itemProductIDs(o.Items)...)

	s.publish(ctx, events.OrderCreated, o)
	s.jobs.Add(queue.Job{
		Type:     queue.TypeSendEmail,
		Priority: 1,
		Data: map[string]any{
			"to":       customer.Email,
			"template": "order-confirmation",
			"orderId":  o.ID,
		},
	})

	return s.orders.GetByID(ctx, o.ID)
}

// FindAll lists every order, optionally narrowed to one status. Admin only.
func (s *Service) FindAll(ctx context.Context, actor user.Actor, status *Status) ([]Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if status != nil && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.orders.List(ctx, status)
}

// FindByUser lists the orders of one customer, newest first.
func (s *Service) FindByUser(ctx context.Context, userID int64) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// FindOne returns an order visible to the actor.
func (s *Service) FindOne(ctx context.Context, actor user.Actor, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(o.UserID) {
		return nil, ErrAccessDenied
	}
	return o, nil
}

// UpdateStatus moves an order forward through fulfilment. Admin only.
// Cancelling is rejected here; Cancel restores stock.
func (s *Service) UpdateStatus(ctx context.Context, actor user.Actor, id string, status Status) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	if status == StatusCancelled {
		return nil, ErrCancelViaStatus
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanMoveTo(status) {
		return nil, &StatusTransitionError{From: o.Status, To: status}
	}
	if err := s.orders.UpdateStatus(ctx, id, o.Status, status); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// UpdatePaymentStatus records the payment state of an order. Admin only.
func (s *Service) UpdatePaymentStatus(ctx context.Context, actor user.Actor, id string, status PaymentStatus) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if !status.Valid() {
		return nil, ErrInvalidPaymentStatus
	}
	if err := s.orders.UpdatePaymentStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// UpdateNotes replaces the notes of an open order.
func (s *Service) UpdateNotes(ctx context.Context, actor user.Actor, id, notes string) (*Order, error) {
	o, err := s.FindOne(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Open() {
		return nil, ErrNotEditable
	}
	if err := s.orders.UpdateNotes(ctx, id, notes); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, id)
}

// Cancel cancels an open order and restores the stock of its items.
func (s *Service) Cancel(ctx context.Context, actor user.Actor, id, reason string) (*Order, error) {
	o, err := s.FindOne(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Open() {
		return nil, ErrNotCancellable
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	if err := s.orders.Cancel(ctx, id, reason, s.now()); err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}

	s.cache.Invalidate(ctx, itemProductIDs(o.Items)...)

	cancelled, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.OrderCancelled, cancelled)
	for _, item := range cancelled.Items {
		s.jobs.Add(queue.Job{
			Type: queue.TypeUpdateInventory,
			Data: map[string]any{
				"productId": item.ProductID,
				"quantity":  item.Quantity,
				"orderId":   id,
			},
		})
	}
	return cancelled, nil
}

func itemProductIDs(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// CreateAddress adds an address to the user's address book.
func (s *Service) CreateAddress(ctx context.Context, userID int64, in AddressInput) (*Address, error) {
	for _, f := range []struct{ name, value string }{
		{"street", in.Street},
		{"city", in.City},
		{"state", in.State},
		{"zipCode", in.ZipCode},
		{"country", in.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			return nil, apperr.BadRequest(f.name + " is required")
		}
	}
	a := &Address{
		ID:      uuid.NewString(),
		UserID:  userID,
		Street:  strings.TrimSpace(in.Street),
		City:    strings.TrimSpace(in.City),
		State:   strings.TrimSpace(in.State),
		ZipCode: strings.TrimSpace(in.ZipCode),
		Country: strings.TrimSpace(in.Country),
	}
	if err := s.addresses.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return a, nil
}

// FindUserAddresses lists the user's addresses, default first.
func (s *Service) FindUserAddresses(ctx context.Context, userID int64) ([]Address, error) {
	return s.addresses.ListByUser(ctx, userID)
}

// SetDefaultAddress makes id the single default address of the user.
func (s *Service) SetDefaultAddress(ctx context.Context, userID int64, id string) (*Address, error) {
	return s.addresses.SetDefault(ctx, userID, id)
}

func (s *Service) publish(ctx context.Context, typ string, o *Order) {
	err := s.events.Publish(ctx, events.Event{
		Type:       typ,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Total:      o.Total,
		Status:     string(o.Status),
		OccurredAt: s.now(),
	})
	if err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("type", typ),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
