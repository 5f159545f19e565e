// Package handler exposes the storefront services over HTTP.
//
// Every API route is declared once in routes and registered through the
// access policy: a route without a policy entry fails router construction.
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/collection"
	"github.com/xenking/storefront/internal/domain/dashboard"
	"github.com/xenking/storefront/internal/domain/favorite"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/sale"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/queue"
	"github.com/xenking/storefront/internal/upload"
)

// Users is the account service.
type Users interface {
	Register(ctx context.Context, in user.CreateInput) (*user.User, error)
	Login(ctx context.Context, email, password string) (*user.Session, error)
	Create(ctx context.Context, actor user.Actor, in user.CreateInput) (*user.User, error)
	FindAll(ctx context.Context, actor user.Actor) ([]user.User, error)
	FindOne(ctx context.Context, actor user.Actor, id int64) (*user.User, error)
	Update(ctx context.Context, actor user.Actor, id int64, in user.UpdateInput) (*user.User, error)
	UpdateAvatar(ctx context.Context, id int64, url string) (*user.User, error)
	Remove(ctx context.Context, actor user.Actor, id int64) error
}

// Categories manages categories and subcategories.
type Categories interface {
	Create(ctx context.Context, in category.Input) (*category.Category, error)
	FindAll(ctx context.Context) ([]category.Category, error)
	FindOne(ctx context.Context, id string) (*category.Category, error)
	Update(ctx context.Context, id string, in category.Input) (*category.Category, error)
	SetImage(ctx context.Context, id, url string) (*category.Category, error)
	Remove(ctx context.Context, id string) error

	CreateSubcategory(ctx context.Context, in category.Input) (*category.Subcategory, error)
	FindAllSubcategories(ctx context.Context) ([]category.Subcategory, error)
	FindSubcategoriesByCategory(ctx context.Context, categoryID string) ([]category.Subcategory, error)
	FindSubcategory(ctx context.Context, id string) (*category.Subcategory, error)
	UpdateSubcategory(ctx context.Context, id string, in category.Input) (*category.Subcategory, error)
	RemoveSubcategory(ctx context.Context, id string) error
}

// Collections manages product collections.
type Collections interface {
	Create(ctx context.Context, in collection.Input) (*collection.Collection, error)
	FindAll(ctx context.Context) ([]collection.Collection, error)
	FindOne(ctx context.Context, id string) (*collection.Collection, error)
	Update(ctx context.Context, id string, in collection.Input) (*collection.Collection, error)
	SetImage(ctx context.Context, id, url string) (*collection.Collection, error)
	Remove(ctx context.Context, id string) error
}

// Products is the catalog.
type Products interface {
	Create(ctx context.Context, in product.CreateInput) (*product.Product, error)
	FindAll(ctx context.Context, f product.Filter) (*product.Page, error)
	FindOne(ctx context.Context, id string) (*product.Product, error)
	GetImagesByColor(ctx context.Context, id, color string) ([]product.Image, error)
	GetAvailableColors(ctx context.Context, id string) ([]string, error)
	Update(ctx context.Context, id string, patch product.Patch) (*product.Product, error)
	Remove(ctx context.Context, id string) error
	AddImage(ctx context.Context, productID string, in product.ImageInput) (*product.Image, error)
	AddImages(ctx context.Context, productID string, in []product.ImageInput) ([]product.Image, error)
	RemoveImage(ctx context.Context, productID, imageID string) error
	AddVariant(ctx context.Context, productID string, in product.VariantInput) (*product.Variant, error)
	RemoveVariant(ctx context.Context, productID, variantID string) error
}

// Sales manages discount campaigns.
type Sales interface {
	Create(ctx context.Context, in sale.Input) (*sale.Sale, error)
	FindAll(ctx context.Context) ([]sale.Sale, error)
	FindActive(ctx context.Context) ([]sale.Sale, error)
	FindOne(ctx context.Context, id string) (*sale.Sale, error)
	Update(ctx context.Context, id string, in sale.Input) (*sale.Sale, error)
	Remove(ctx context.Context, id string) error
	CalculateDiscount(ctx context.Context, productID string, orderAmount *decimal.Decimal) (sale.Discount, error)
}

// Carts is the per-user shopping cart.
type Carts interface {
	AddItem(ctx context.Context, userID int64, in cart.AddInput) (*cart.Item, error)
	FindByUser(ctx context.Context, userID int64) (*cart.View, error)
	UpdateItem(ctx context.Context, userID int64, id string, quantity int) (*cart.Item, error)
	RemoveItem(ctx context.Context, userID int64, id string) error
	Clear(ctx context.Context, userID int64) error
	Count(ctx context.Context, userID int64) (int, error)
}

// Favorites is the per-user wish list.
type Favorites interface {
	Add(ctx context.Context, userID int64, productID string) (*favorite.Favorite, error)
	FindByUser(ctx context.Context, userID int64) ([]favorite.Favorite, error)
	RemoveByProduct(ctx context.Context, userID int64, productID string) error
	Remove(ctx context.Context, userID int64, id string) error
	IsFavorite(ctx context.Context, userID int64, productID string) (favorite.Status, error)
}

// Orders is the order lifecycle and the address book.
type Orders interface {
	Create(ctx context.Context, actor user.Actor, req order.PlaceOrderRequest) (*order.Order, error)
	FindAll(ctx context.Context, actor user.Actor, status *order.Status) ([]order.Order, error)
	FindByUser(ctx context.Context, userID int64) ([]order.Order, error)
	FindOne(ctx context.Context, actor user.Actor, id string) (*order.Order, error)
	UpdateStatus(ctx context.Context, actor user.Actor, id string, status order.Status) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, actor user.Actor, id string, status order.PaymentStatus) (*order.Order, error)
	UpdateNotes(ctx context.Context, actor user.Actor, id, notes string) (*order.Order, error)
	Cancel(ctx context.Context, actor user.Actor, id, reason string) (*order.Order, error)
	CreateAddress(ctx context.Context, userID int64, in order.AddressInput) (*order.Address, error)
	FindUserAddresses(ctx context.Context, userID int64) ([]order.Address, error)
	SetDefaultAddress(ctx context.Context, userID int64, id string) (*order.Address, error)
}

// Dashboard serves the admin overview.
type Dashboard interface {
	Statistics(ctx context.Context) (*dashboard.Statistics, error)
	Revenue(ctx context.Context) (*dashboard.Revenue, error)
}

// Uploads stores image files.
type Uploads interface {
	Save(ctx context.Context, f upload.File, folder upload.Folder) (*upload.Result, error)
	SaveMany(ctx context.Context, files []upload.File, folder upload.Folder) ([]upload.Result, error)
	Delete(p string) (bool, error)
	MaxSize() int64
}

// Jobs reports the background queue.
type Jobs interface {
	Status() queue.Status
}

// Authorizer builds the access middleware of one route.
type Authorizer interface {
	Require(method, pattern string) (func(http.Handler) http.Handler, error)
}

// Probes serves the health endpoints.
type Probes interface {
	LiveEndpoint(w http.ResponseWriter, r *http.Request)
	ReadyEndpoint(w http.ResponseWriter, r *http.Request)
}

// Services groups the dependencies of the Handler.
type Services struct {
	Users       Users
	Categories  Categories
	Collections Collections
	Products    Products
	Sales       Sales
	Carts       Carts
	Favorites   Favorites
	Orders      Orders
	Dashboard   Dashboard
	Uploads     Uploads
	Jobs        Jobs
}

// Config holds non-dependency settings of the Handler.
type Config struct {
	// UploadsDir is served under UploadsPrefix when set.
	UploadsDir    string
	UploadsPrefix string
}

// Handler implements the storefront API.
type Handler struct {
	Services
	cfg Config
}

// New creates a Handler.
func New(cfg Config, svc Services) *Handler {
	if cfg.UploadsPrefix == "" {
		cfg.UploadsPrefix = "/uploads"
	}
	cfg.UploadsPrefix = "/" + strings.Trim(cfg.UploadsPrefix, "/")
	return &Handler{Services: svc, cfg: cfg}
}

type route struct {
	method  string
	pattern string
	handle  http.HandlerFunc
}

func (h *Handler) routes() []route {
	return []route{
		{http.MethodPost, "/auth/register", h.register},
		{http.MethodPost, "/auth/login", h.login},
		{http.MethodGet, "/auth/me", h.me},

		{http.MethodPost, "/users", h.createUser},
		{http.MethodGet, "/users", h.listUsers},
		{http.MethodGet, "/users/{id}", h.getUser},
		{http.MethodPatch, "/users/{id}", h.updateUser},
		{http.MethodDelete, "/users/{id}", h.deleteUser},

		{http.MethodPost, "/categories", h.createCategory},
		{http.MethodGet, "/categories", h.listCategories},
		{http.MethodGet, "/categories/{id}", h.getCategory},
		{http.MethodPatch, "/categories/{id}", h.updateCategory},
		{http.MethodDelete, "/categories/{id}", h.deleteCategory},

		{http.MethodPost, "/subcategories", h.createSubcategory},
		{http.MethodGet, "/subcategories", h.listSubcategories},
		{http.MethodGet, "/subcategories/category/{categoryId}", h.listSubcategoriesByCategory},
		{http.MethodGet, "/subcategories/{id}", h.getSubcategory},
		{http.MethodPatch, "/subcategories/{id}", h.updateSubcategory},
		{http.MethodDelete, "/subcategories/{id}", h.deleteSubcategory},

		{http.MethodPost, "/collections", h.createCollection},
		{http.MethodGet, "/collections", h.listCollections},
		{http.MethodGet, "/collections/{id}", h.getCollection},
		{http.MethodPatch, "/collections/{id}", h.updateCollection},
		{http.MethodDelete, "/collections/{id}", h.deleteCollection},

		{http.MethodPost, "/products", h.createProduct},
		{http.MethodGet, "/products", h.listProducts},
		{http.MethodGet, "/products/{id}", h.getProduct},
		{http.MethodGet, "/products/{id}/colors", h.productColors},
		{http.MethodGet, "/products/{id}/images/{color}", h.productImagesByColor},
		{http.MethodPatch, "/products/{id}", h.updateProduct},
		{http.MethodDelete, "/products/{id}", h.deleteProduct},
		{http.MethodPost, "/products/{id}/images", h.addProductImage},
		{http.MethodPost, "/products/{id}/images/multiple", h.addProductImages},
		{http.MethodDelete, "/products/{id}/images/{imageId}", h.deleteProductImage},
		{http.MethodPost, "/products/{id}/variants", h.addProductVariant},
		{http.MethodDelete, "/products/{id}/variants/{variantId}", h.deleteProductVariant},

		{http.MethodPost, "/sales", h.createSale},
		{http.MethodGet, "/sales", h.listSales},
		{http.MethodGet, "/sales/active", h.listActiveSales},
		{http.MethodGet, "/sales/discount/{productId}", h.saleDiscount},
		{http.MethodGet, "/sales/{id}", h.getSale},
		{http.MethodPatch, "/sales/{id}", h.updateSale},
		{http.MethodDelete, "/sales/{id}", h.deleteSale},

		{http.MethodPost, "/cart/items", h.addCartItem},
		{http.MethodGet, "/cart", h.getCart},
		{http.MethodGet, "/cart/count", h.cartCount},
		{http.MethodPatch, "/cart/items/{id}", h.updateCartItem},
		{http.MethodDelete, "/cart/items/{id}", h.deleteCartItem},
		{http.MethodDelete, "/cart/clear", h.clearCart},

		{http.MethodPost, "/favorites", h.addFavorite},
		{http.MethodGet, "/favorites", h.listFavorites},
		{http.MethodGet, "/favorites/check/{productId}", h.checkFavorite},
		{http.MethodDelete, "/favorites/product/{productId}", h.deleteFavoriteByProduct},
		{http.MethodDelete, "/favorites/{id}", h.deleteFavorite},

		{http.MethodPost, "/orders", h.createOrder},
		{http.MethodGet, "/orders", h.listOrders},
		{http.MethodGet, "/orders/my-orders", h.myOrders},
		{http.MethodPost, "/orders/addresses", h.createAddress},
		{http.MethodGet, "/orders/addresses/my-addresses", h.myAddresses},
		{http.MethodPatch, "/orders/addresses/{id}/set-default", h.setDefaultAddress},
		{http.MethodGet, "/orders/{id}", h.getOrder},
		{http.MethodPatch, "/orders/{id}", h.updateOrderNotes},
		{http.MethodPatch, "/orders/{id}/status", h.updateOrderStatus},
		{http.MethodPatch, "/orders/{id}/payment-status", h.updatePaymentStatus},
		{http.MethodPatch, "/orders/{id}/cancel", h.cancelOrder},

		{http.MethodPost, "/upload/single", h.uploadSingle},
		{http.MethodPost, "/upload/multiple", h.uploadMultiple},
		{http.MethodPost, "/upload/product-image", h.uploadProductImage},
		{http.MethodPost, "/upload/product-images-multiple", h.uploadProductImages},
		{http.MethodPost, "/upload/category-image", h.uploadCategoryImage},
		{http.MethodPost, "/upload/collection-image", h.uploadCollectionImage},
		{http.MethodPost, "/upload/user-avatar", h.uploadAvatar},
		{http.MethodDelete, "/upload/file", h.deleteUpload},

		{http.MethodGet, "/dashboard/statistics", h.statistics},
		{http.MethodGet, "/dashboard/revenue", h.revenue},

		{http.MethodGet, "/queue/status", h.queueStatus},
	}
}

// Router mounts the API under /api, the probes at /livez and /readyz and the
// uploaded files under the uploads prefix.
func (h *Handler) Router(guard Authorizer, probes Probes) (http.Handler, error) {
	api := chi.NewRouter()
	api.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, errRouteNotFound(r))
	})
	api.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	for _, rt := range h.routes() {
		mw, err := guard.Require(rt.method, "/api"+rt.pattern)
		if err != nil {
			return nil, errors.Wrap(err, "register route")
		}
		api.With(mw).Method(rt.method, rt.pattern, rt.handle)
	}

	r := chi.NewRouter()
	if probes != nil {
		r.Get("/livez", probes.LiveEndpoint)
		r.Get("/readyz", probes.ReadyEndpoint)
	}
	if h.cfg.UploadsDir != "" {
		files := http.StripPrefix(h.cfg.UploadsPrefix, http.FileServer(http.Dir(h.cfg.UploadsDir)))
		r.Handle(h.cfg.UploadsPrefix+"/*", files)
	}
	r.Mount("/api", api)
	return r, nil
}
