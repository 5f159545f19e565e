package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	productSelect = `SELECT p.id, p.name, p.description, p.price, p.stock, p.sku, p.category_id,
		p.subcategory_id, p.collection_id, p.is_active, p.is_featured, p.is_on_sale, p.sale_price,
		p.sale_badge, p.created_at, p.updated_at, c.name, s.name, col.name
		FROM products p
		JOIN categories c ON c.id = p.category_id
		LEFT JOIN subcategories s ON s.id = p.subcategory_id
		LEFT JOIN collections col ON col.id = p.collection_id`

	createProductSQL = `INSERT INTO products (id, name, description, price, stock, sku, category_id,
		subcategory_id, collection_id, is_active, is_featured, is_on_sale, sale_price, sale_badge)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateProductSQL = `UPDATE products SET name = $2, description = $3, price = $4, stock = $5, sku = $6,
		category_id = $7, subcategory_id = $8, collection_id = $9, is_active = $10, is_featured = $11,
		is_on_sale = $12, sale_price = $13, sale_badge = $14, updated_at = now()
		WHERE id = $1`

	insertImageSQL = `INSERT INTO product_images (id, product_id, url, color, is_main, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertVariantSQL = `INSERT INTO product_variants (id, product_id, color, size, stock, price, sku)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	listImagesSQL = `SELECT id, product_id, url, color, is_main, sort_order
		FROM product_images WHERE product_id = ANY($1) ORDER BY sort_order, id`

	listVariantsSQL = `SELECT id, product_id, color, size, stock, price, sku
		FROM product_variants WHERE product_id = ANY($1) ORDER BY color, size`

	deleteImageSQL   = `DELETE FROM product_images WHERE id = $1 AND product_id = $2`
	deleteVariantSQL = `DELETE FROM product_variants WHERE id = $1 AND product_id = $2`

	listSKUsSQL  = `SELECT sku FROM products`
	skuExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)`
)

// Dependent rows of products, deleted before the products themselves.
var productDependents = []string{
	`DELETE FROM product_images WHERE product_id = ANY($1)`,
	`DELETE FROM product_variants WHERE product_id = ANY($1)`,
	`DELETE FROM cart_items WHERE product_id = ANY($1)`,
	`DELETE FROM favorites WHERE product_id = ANY($1)`,
	`DELETE FROM product_sales WHERE product_id = ANY($1)`,
	`DELETE FROM order_items WHERE product_id = ANY($1)`,
}

const deleteProductsSQL = `DELETE FROM products WHERE id = ANY($1)`

// deleteProducts removes products and every row that references them. It
// returns the number of products removed.
func deleteProducts(ctx context.Context, q querier, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	for _, stmt := range productDependents {
		if _, err := q.Exec(ctx, stmt, ids); err != nil {
			return 0, fmt.Errorf("deleting product dependents: %w", err)
		}
	}
	tag, err := q.Exec(ctx, deleteProductsSQL, ids)
	if err != nil {
		return 0, fmt.Errorf("deleting products: %w", err)
	}
	return tag.RowsAffected(), nil
}

var sortColumns = map[product.SortField]string{
	product.SortByName:      "p.name",
	product.SortByPrice:     "p.price",
	product.SortByCreatedAt: "p.created_at",
	product.SortByUpdatedAt: "p.updated_at",
}

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db DB
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(db DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts the product with its images and variants in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Stock, p.SKU, p.CategoryID,
			p.SubcategoryID, p.CollectionID, p.IsActive, p.IsFeatured, p.IsOnSale, p.SalePrice, p.SaleBadge,
		)
		if err != nil {
			return mapProductErr(err)
		}
		if err := insertImages(ctx, tx, p.Images); err != nil {
			return err
		}
		for i := range p.Variants {
			if err := insertVariant(ctx, tx, &p.Variants[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.Name, err)
	}
	return nil
}

// GetByID returns a product with its relations, images and variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.Query(ctx, productSelect+` WHERE p.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		return nil, notFound(err, product.ErrNotFound)
	}
	list := []product.Product{p}
	if err := r.attach(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, productSelect+` WHERE p.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	if err := r.attach(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// List returns one page of products matching f and the total match count.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, int, error) {
	f.Normalize()
	where, args := productWhere(f)

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	args = append(args, f.Limit, f.Skip())
	sql := productSelect + where +
		` ORDER BY ` + sortColumns[f.SortBy] + ` ` + dir + `, p.id` +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	if err := r.attach(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// productWhere builds the WHERE clause for f with positional arguments.
func productWhere(f product.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.CategoryID != "" {
		add("p.category_id = ?", f.CategoryID)
	}
	if f.SubcategoryID != "" {
		add("p.subcategory_id = ?", f.SubcategoryID)
	}
	if f.CollectionID != "" {
		add("p.collection_id = ?", f.CollectionID)
	}
	if f.IsActive != nil {
		add("p.is_active = ?", *f.IsActive)
	}
	if f.IsFeatured != nil {
		add("p.is_featured = ?", *f.IsFeatured)
	}
	if f.IsOnSale != nil {
		add("p.is_on_sale = ?", *f.IsOnSale)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		add("(p.name ILIKE ? OR p.description ILIKE ?)", "%"+s+"%")
	}
	if f.MinPrice.Valid {
		add("p.price >= ?", f.MinPrice.Decimal)
	}
	if f.MaxPrice.Valid {
		add("p.price <= ?", f.MaxPrice.Decimal)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// attach loads images and variants for list.
func (r *ProductRepository) attach(ctx context.Context, list []product.Product) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}

	rows, err := r.db.Query(ctx, listImagesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}
	images, err := pgx.CollectRows(rows, scanImage)
	if err != nil {
		return fmt.Errorf("listing images: %w", err)
	}
	rows, err = r.db.Query(ctx, listVariantsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing variants: %w", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return fmt.Errorf("listing variants: %w", err)
	}

	imagesBy := make(map[string][]product.Image, len(list))
	for _, img := range images {
		imagesBy[img.ProductID] = append(imagesBy[img.ProductID], img)
	}
	variantsBy := make(map[string][]product.Variant, len(list))
	for _, v := range variants {
		variantsBy[v.ProductID] = append(variantsBy[v.ProductID], v)
	}
	for i := range list {
		list[i].Images = nonNil(imagesBy[list[i].ID])
		list[i].Variants = nonNil(variantsBy[list[i].ID])
	}
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	tag, err := r.db.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Price, p.Stock, p.SKU, p.CategoryID,
		p.SubcategoryID, p.CollectionID, p.IsActive, p.IsFeatured, p.IsOnSale, p.SalePrice, p.SaleBadge,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, mapProductErr(err))
	}
	return affected(tag, product.ErrNotFound)
}

// Delete removes the product and its dependent rows in one transaction.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		n, err := deleteProducts(ctx, tx, []string{id})
		if err != nil {
			return err
		}
		if n == 0 {
			return product.ErrNotFound
		}
		return nil
	})
}

func (r *ProductRepository) AddImages(ctx context.Context, productID string, images []product.Image) ([]product.Image, error) {
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		return insertImages(ctx, tx, images)
	})
	if err != nil {
		return nil, fmt.Errorf("adding images to %q: %w", productID, err)
	}
	return images, nil
}

func (r *ProductRepository) DeleteImage(ctx context.Context, productID, imageID string) error {
	tag, err := r.db.Exec(ctx, deleteImageSQL, imageID, productID)
	if err != nil {
		return fmt.Errorf("deleting image %q: %w", imageID, err)
	}
	return affected(tag, product.ErrImageNotFound)
}

func (r *ProductRepository) AddVariant(ctx context.Context, v *product.Variant) error {
	if err := insertVariant(ctx, r.db, v); err != nil {
		return fmt.Errorf("adding variant to %q: %w", v.ProductID, err)
	}
	return nil
}

func (r *ProductRepository) DeleteVariant(ctx context.Context, productID, variantID string) error {
	tag, err := r.db.Exec(ctx, deleteVariantSQL, variantID, productID)
	if err != nil {
		return fmt.Errorf("deleting variant %q: %w", variantID, err)
	}
	return affected(tag, product.ErrVariantNotFound)
}

func insertImages(ctx context.Context, q querier, images []product.Image) error {
	for _, img := range images {
		_, err := q.Exec(ctx, insertImageSQL, img.ID, img.ProductID, img.URL, img.Color, img.IsMain, img.Order)
		if err != nil {
			if isForeignKeyViolation(err) {
				return product.ErrNotFound
			}
			return fmt.Errorf("inserting image: %w", err)
		}
	}
	return nil
}

func insertVariant(ctx context.Context, q querier, v *product.Variant) error {
	_, err := q.Exec(ctx, insertVariantSQL, v.ID, v.ProductID, v.Color, v.Size, v.Stock, v.Price, v.SKU)
	if err != nil {
		if isUniqueViolation(err) {
			return product.ErrVariantSKUTaken
		}
		if isForeignKeyViolation(err) {
			return product.ErrNotFound
		}
		return fmt.Errorf("inserting variant: %w", err)
	}
	return nil
}

// mapProductErr translates constraint violations on the products table.
func mapProductErr(err error) error {
	switch {
	case isUniqueViolation(err):
		return product.ErrSKUTaken
	case isForeignKeyViolation(err):
		return product.ErrCategoryNotFound
	default:
		return err
	}
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p                       product.Product
		catName                 string
		subName, collectionName *string
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.SKU, &p.CategoryID,
		&p.SubcategoryID, &p.CollectionID, &p.IsActive, &p.IsFeatured, &p.IsOnSale, &p.SalePrice,
		&p.SaleBadge, &p.CreatedAt, &p.UpdatedAt, &catName, &subName, &collectionName,
	)
	p.Category = &product.Ref{ID: p.CategoryID, Name: catName}
	if p.SubcategoryID != nil && subName != nil {
		p.Subcategory = &product.Ref{ID: *p.SubcategoryID, Name: *subName}
	}
	if p.CollectionID != nil && collectionName != nil {
		p.Collection = &product.Ref{ID: *p.CollectionID, Name: *collectionName}
	}
	return p, err
}

// EachSKU calls fn with the SKU of every product.
func (r *ProductRepository) EachSKU(ctx context.Context, fn func(sku string)) error {
	rows, err := r.db.Query(ctx, listSKUsSQL)
	if err != nil {
		return fmt.Errorf("listing skus: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sku string
		if err := rows.Scan(&sku); err != nil {
			return fmt.Errorf("scanning sku: %w", err)
		}
		fn(sku)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing skus: %w", err)
	}
	return nil
}

// SKUExists reports whether a product with the SKU exists.
func (r *ProductRepository) SKUExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, skuExistsSQL, sku).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking sku %q: %w", sku, err)
	}
	return exists, nil
}

func scanImage(row pgx.CollectableRow) (product.Image, error) {
	var img product.Image
	err := row.Scan(&img.ID, &img.ProductID, &img.URL, &img.Color, &img.IsMain, &img.Order)
	return img, err
}

func scanVariant(row pgx.CollectableRow) (product.Variant, error) {
	var v product.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Color, &v.Size, &v.Stock, &v.Price, &v.SKU)
	return v, err
}
