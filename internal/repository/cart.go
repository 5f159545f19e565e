package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/favorite"
	"github.com/xenking/storefront/internal/domain/product"
)

// cardColumns projects the product card embedded in cart rows and favorites.
const cardColumns = `p.id, p.name, p.price, p.sale_price, p.is_on_sale, p.is_active, p.stock, ` +
	mainImageSubquery + `, c.id, c.name`

const (
	cartSelect = `SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.color, ci.size,
		ci.created_at, ci.updated_at, ` + cardColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN categories c ON c.id = p.category_id`

	findCartItemSQL = cartSelect + ` WHERE ci.user_id = $1 AND ci.product_id = $2
		AND ci.color = $3 AND ci.size = $4`

	getCartItemSQL   = cartSelect + ` WHERE ci.user_id = $1 AND ci.id = $2`
	listCartItemsSQL = cartSelect + ` WHERE ci.user_id = $1 ORDER BY ci.created_at DESC`

	createCartItemSQL = `INSERT INTO cart_items (id, user_id, product_id, quantity, color, size)
		VALUES ($1, $2, $3, $4, $5, $6)`

	updateCartQuantitySQL = `UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE user_id = $1 AND id = $2`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND id = $2`
	clearCartSQL      = `DELETE FROM cart_items WHERE user_id = $1`
	countCartSQL      = `SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = $1`

	favoriteSelect = `SELECT f.id, f.user_id, f.product_id, f.created_at, ` + cardColumns + `
		FROM favorites f
		JOIN products p ON p.id = f.product_id
		JOIN categories c ON c.id = p.category_id`

	createFavoriteSQL = `INSERT INTO favorites (id, user_id, product_id) VALUES ($1, $2, $3)
		RETURNING created_at`

	getFavoriteByProductSQL = favoriteSelect + ` WHERE f.user_id = $1 AND f.product_id = $2`
	listFavoritesSQL        = favoriteSelect + ` WHERE f.user_id = $1 ORDER BY f.created_at DESC`
	deleteFavoriteByProduct = `DELETE FROM favorites WHERE user_id = $1 AND product_id = $2`
	deleteFavoriteSQL       = `DELETE FROM favorites WHERE user_id = $1 AND id = $2`
)

var (
	_ cart.Repository     = (*CartRepository)(nil)
	_ favorite.Repository = (*FavoriteRepository)(nil)
)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db DB
}

func NewCartRepository(db DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Find(ctx context.Context, userID int64, productID, color, size string) (*cart.Item, error) {
	return r.getOne(ctx, findCartItemSQL, userID, productID, color, size)
}

func (r *CartRepository) GetByID(ctx context.Context, userID int64, id string) (*cart.Item, error) {
	return r.getOne(ctx, getCartItemSQL, userID, id)
}

func (r *CartRepository) getOne(ctx context.Context, sql string, args ...any) (*cart.Item, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("getting cart item: %w", err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanCartItem)
	if err != nil {
		return nil, notFound(err, cart.ErrItemNotFound)
	}
	return &it, nil
}

func (r *CartRepository) Create(ctx context.Context, it *cart.Item) error {
	_, err := r.db.Exec(ctx, createCartItemSQL, it.ID, it.UserID, it.ProductID, it.Quantity, it.Color, it.Size)
	if err != nil {
		return fmt.Errorf("creating cart item: %w", err)
	}
	return nil
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, userID int64, id string, quantity int) error {
	tag, err := r.db.Exec(ctx, updateCartQuantitySQL, userID, id, quantity)
	if err != nil {
		return fmt.Errorf("updating cart item %q: %w", id, err)
	}
	return affected(tag, cart.ErrItemNotFound)
}

func (r *CartRepository) ListByUser(ctx context.Context, userID int64) ([]cart.Item, error) {
	rows, err := r.db.Query(ctx, listCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	return pgx.CollectRows(rows, scanCartItem)
}

func (r *CartRepository) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(ctx, deleteCartItemSQL, userID, id)
	if err != nil {
		return fmt.Errorf("deleting cart item %q: %w", id, err)
	}
	return affected(tag, cart.ErrItemNotFound)
}

func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

func (r *CartRepository) Count(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, countCartSQL, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cart: %w", err)
	}
	return n, nil
}

func scanCartItem(row pgx.CollectableRow) (cart.Item, error) {
	var (
		it   cart.Item
		card product.Card
		cat  product.Ref
	)
	err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Color, &it.Size, &it.CreatedAt, &it.UpdatedAt,
		&card.ID, &card.Name, &card.Price, &card.SalePrice, &card.IsOnSale, &card.IsActive, &card.Stock,
		&card.MainImage, &cat.ID, &cat.Name,
	)
	card.Category = &cat
	it.Product = &card
	return it, err
}

// FavoriteRepository implements favorite.Repository backed by PostgreSQL.
type FavoriteRepository struct {
	db DB
}

func NewFavoriteRepository(db DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

func (r *FavoriteRepository) Create(ctx context.Context, f *favorite.Favorite) error {
	err := r.db.QueryRow(ctx, createFavoriteSQL, f.ID, f.UserID, f.ProductID).Scan(&f.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return favorite.ErrAlreadyExists
		}
		return fmt.Errorf("creating favorite: %w", err)
	}
	return nil
}

func (r *FavoriteRepository) GetByProduct(ctx context.Context, userID int64, productID string) (*favorite.Favorite, error) {
	rows, err := r.db.Query(ctx, getFavoriteByProductSQL, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("getting favorite: %w", err)
	}
	f, err := pgx.CollectExactlyOneRow(rows, scanFavorite)
	if err != nil {
		return nil, notFound(err, favorite.ErrNotFound)
	}
	return &f, nil
}

func (r *FavoriteRepository) ListByUser(ctx context.Context, userID int64) ([]favorite.Favorite, error) {
	rows, err := r.db.Query(ctx, listFavoritesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	return pgx.CollectRows(rows, scanFavorite)
}

func (r *FavoriteRepository) DeleteByProduct(ctx context.Context, userID int64, productID string) error {
	tag, err := r.db.Exec(ctx, deleteFavoriteByProduct, userID, productID)
	if err != nil {
		return fmt.Errorf("deleting favorite: %w", err)
	}
	return affected(tag, favorite.ErrNotFound)
}

func (r *FavoriteRepository) Delete(ctx context.Context, userID int64, id string) error {
	tag, err := r.db.Exec(ctx, deleteFavoriteSQL, userID, id)
	if err != nil {
		return fmt.Errorf("deleting favorite %q: %w", id, err)
	}
	return affected(tag, favorite.ErrNotFound)
}

func scanFavorite(row pgx.CollectableRow) (favorite.Favorite, error) {
	var (
		f    favorite.Favorite
		card product.Card
		cat  product.Ref
	)
	err := row.Scan(
		&f.ID, &f.UserID, &f.ProductID, &f.CreatedAt,
		&card.ID, &card.Name, &card.Price, &card.SalePrice, &card.IsOnSale, &card.IsActive, &card.Stock,
		&card.MainImage, &cat.ID, &cat.Name,
	)
	card.Category = &cat
	f.Product = &card
	return f, err
}
