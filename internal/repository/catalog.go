package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/category"
	"github.com/xenking/storefront/internal/domain/collection"
	"github.com/xenking/storefront/internal/domain/product"
)

const (
	categoryColumns = `id, name, description, image, is_active, created_at, updated_at`

	createCategorySQL = `INSERT INTO categories (id, name, description, image, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	getCategorySQL  = `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	listCategorySQL = `SELECT ` + categoryColumns + ` FROM categories ORDER BY name`

	updateCategorySQL = `UPDATE categories SET name = $2, description = $3, image = $4, is_active = $5,
		updated_at = now() WHERE id = $1 RETURNING updated_at`

	deleteCategorySQL = `DELETE FROM categories WHERE id = $1`

	subcategoryColumns = `s.id, s.name, s.description, s.image, s.category_id, s.is_active,
		s.created_at, s.updated_at, c.name`

	subcategoryFrom = ` FROM subcategories s JOIN categories c ON c.id = s.category_id`

	createSubcategorySQL = `INSERT INTO subcategories (id, name, description, image, category_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	getSubcategorySQL  = `SELECT ` + subcategoryColumns + subcategoryFrom + ` WHERE s.id = $1`
	listSubcategorySQL = `SELECT ` + subcategoryColumns + subcategoryFrom + ` ORDER BY s.name`

	listSubcategoryByCategorySQL = `SELECT ` + subcategoryColumns + subcategoryFrom +
		` WHERE s.category_id = ANY($1) ORDER BY s.name`

	updateSubcategorySQL = `UPDATE subcategories SET name = $2, description = $3, image = $4, category_id = $5,
		is_active = $6, updated_at = now() WHERE id = $1 RETURNING updated_at`

	deleteSubcategorySQL        = `DELETE FROM subcategories WHERE id = $1`
	countSubcategoryProductsSQL = `SELECT count(*) FROM products WHERE subcategory_id = $1`

	collectionColumns = `id, name, description, image, is_active, created_at, updated_at`

	createCollectionSQL = `INSERT INTO collections (id, name, description, image, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	getCollectionSQL  = `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1`
	listCollectionSQL = `SELECT ` + collectionColumns + ` FROM collections ORDER BY name`

	updateCollectionSQL = `UPDATE collections SET name = $2, description = $3, image = $4, is_active = $5,
		updated_at = now() WHERE id = $1 RETURNING updated_at`

	detachCollectionSQL = `UPDATE products SET collection_id = NULL, updated_at = now()
		WHERE collection_id = $1 RETURNING id`

	deleteCollectionSQL = `DELETE FROM collections WHERE id = $1`

	categoryExistsSQL    = `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`
	subcategoryExistsSQL = `SELECT EXISTS (SELECT 1 FROM subcategories WHERE id = $1)`
	collectionExistsSQL  = `SELECT EXISTS (SELECT 1 FROM collections WHERE id = $1)`

	selectCategoryProductIDsSQL = `SELECT id FROM products WHERE category_id = $1`
	deleteCategorySubsSQL       = `DELETE FROM subcategories WHERE category_id = $1`
)

// summaryOwner is the product column a summary list is grouped by.
type summaryOwner string

const (
	ownerCategory    summaryOwner = "category_id"
	ownerSubcategory summaryOwner = "subcategory_id"
	ownerCollection  summaryOwner = "collection_id"
)

func productSummariesSQL(owner summaryOwner) string {
	return `SELECT p.` + string(owner) + `, p.id, p.name, p.price, ` + mainImageSubquery + `
		FROM products p WHERE p.` + string(owner) + ` = ANY($1) ORDER BY p.created_at DESC`
}

const mainImageSubquery = `(SELECT i.url FROM product_images i WHERE i.product_id = p.id
			ORDER BY i.is_main DESC, i.sort_order LIMIT 1)`

// productSummaries loads the products owned by ids, grouped by owner id.
func productSummaries(ctx context.Context, q querier, owner summaryOwner, ids []string) (map[string][]product.Summary, error) {
	out := make(map[string][]product.Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, productSummariesSQL(owner), ids)
	if err != nil {
		return nil, fmt.Errorf("listing product summaries: %w", err)
	}
	type owned struct {
		owner string
		product.Summary
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (owned, error) {
		var o owned
		err := row.Scan(&o.owner, &o.ID, &o.Name, &o.Price, &o.MainImage)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing product summaries: %w", err)
	}
	for _, o := range list {
		out[o.owner] = append(out[o.owner], o.Summary)
	}
	return out, nil
}

var (
	_ category.Repository            = (*CategoryRepository)(nil)
	_ category.SubcategoryRepository = (*SubcategoryRepository)(nil)
	_ collection.Repository          = (*CollectionRepository)(nil)
	_ product.References             = (*References)(nil)
)

// CategoryRepository implements category.Repository backed by PostgreSQL.
type CategoryRepository struct {
	db DB
}

func NewCategoryRepository(db DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, c *category.Category) error {
	err := r.db.QueryRow(ctx, createCategorySQL, c.ID, c.Name, c.Description, c.Image, c.IsActive).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return category.ErrNameTaken
		}
		return fmt.Errorf("creating category %q: %w", c.Name, err)
	}
	return nil
}

// GetByID loads the category with its subcategories and products.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*category.Category, error) {
	rows, err := r.db.Query(ctx, getCategorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if err != nil {
		return nil, notFound(err, category.ErrNotFound)
	}
	list := []category.Category{c}
	if err := r.attach(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]category.Category, error) {
	rows, err := r.db.Query(ctx, listCategorySQL)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	if err := r.attach(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attach loads subcategories and product summaries for list in two queries.
func (r *CategoryRepository) attach(ctx context.Context, list []category.Category) error {
	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}

	rows, err := r.db.Query(ctx, listSubcategoryByCategorySQL, ids)
	if err != nil {
		return fmt.Errorf("listing subcategories: %w", err)
	}
	subs, err := pgx.CollectRows(rows, scanSubcategory)
	if err != nil {
		return fmt.Errorf("listing subcategories: %w", err)
	}
	byCategory := make(map[string][]category.Subcategory, len(list))
	for _, s := range subs {
		byCategory[s.CategoryID] = append(byCategory[s.CategoryID], s)
	}

	products, err := productSummaries(ctx, r.db, ownerCategory, ids)
	if err != nil {
		return err
	}
	for i := range list {
		list[i].Subcategories = nonNil(byCategory[list[i].ID])
		list[i].Products = nonNil(products[list[i].ID])
	}
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, c *category.Category) error {
	err := r.db.QueryRow(ctx, updateCategorySQL, c.ID, c.Name, c.Description, c.Image, c.IsActive).
		Scan(&c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return category.ErrNameTaken
		}
		return notFound(err, category.ErrNotFound)
	}
	return nil
}

// Delete removes the category, its subcategories and its products with every
// dependent row, in one transaction.
func (r *CategoryRepository) Delete(ctx context.Context, id string) ([]string, error) {
	var removed []string
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, selectCategoryProductIDsSQL, id)
		if err != nil {
			return fmt.Errorf("selecting products: %w", err)
		}
		removed, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("selecting products: %w", err)
		}
		if _, err := deleteProducts(ctx, tx, removed); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteCategorySubsSQL, id); err != nil {
			return fmt.Errorf("deleting subcategories: %w", err)
		}
		tag, err := tx.Exec(ctx, deleteCategorySQL, id)
		if err != nil {
			return fmt.Errorf("deleting category: %w", err)
		}
		return affected(tag, category.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func scanCategory(row pgx.CollectableRow) (category.Category, error) {
	var c category.Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Image, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// SubcategoryRepository implements category.SubcategoryRepository.
type SubcategoryRepository struct {
	db DB
}

func NewSubcategoryRepository(db DB) *SubcategoryRepository {
	return &SubcategoryRepository{db: db}
}

func (r *SubcategoryRepository) Create(ctx context.Context, s *category.Subcategory) error {
	err := r.db.QueryRow(ctx, createSubcategorySQL, s.ID, s.Name, s.Description, s.Image, s.CategoryID, s.IsActive).
		Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return category.ErrSubcategoryNameTaken
		}
		if isForeignKeyViolation(err) {
			return category.ErrNotFound
		}
		return fmt.Errorf("creating subcategory %q: %w", s.Name, err)
	}
	return nil
}

// GetByID loads the subcategory with its category and products.
func (r *SubcategoryRepository) GetByID(ctx context.Context, id string) (*category.Subcategory, error) {
	rows, err := r.db.Query(ctx, getSubcategorySQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting subcategory %q: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSubcategory)
	if err != nil {
		return nil, notFound(err, category.ErrSubcategoryNotFound)
	}
	products, err := productSummaries(ctx, r.db, ownerSubcategory, []string{id})
	if err != nil {
		return nil, err
	}
	s.Products = nonNil(products[id])
	return &s, nil
}

func (r *SubcategoryRepository) List(ctx context.Context) ([]category.Subcategory, error) {
	rows, err := r.db.Query(ctx, listSubcategorySQL)
	if err != nil {
		return nil, fmt.Errorf("listing subcategories: %w", err)
	}
	return pgx.CollectRows(rows, scanSubcategory)
}

func (r *SubcategoryRepository) ListByCategory(ctx context.Context, categoryID string) ([]category.Subcategory, error) {
	rows, err := r.db.Query(ctx, listSubcategoryByCategorySQL, []string{categoryID})
	if err != nil {
		return nil, fmt.Errorf("listing subcategories of %q: %w", categoryID, err)
	}
	return pgx.CollectRows(rows, scanSubcategory)
}

func (r *SubcategoryRepository) Update(ctx context.Context, s *category.Subcategory) error {
	err := r.db.QueryRow(ctx, updateSubcategorySQL, s.ID, s.Name, s.Description, s.Image, s.CategoryID, s.IsActive).
		Scan(&s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return category.ErrSubcategoryNameTaken
		}
		return notFound(err, category.ErrSubcategoryNotFound)
	}
	return nil
}

func (r *SubcategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, deleteSubcategorySQL, id)
	if err != nil {
		return fmt.Errorf("deleting subcategory %q: %w", id, err)
	}
	return affected(tag, category.ErrSubcategoryNotFound)
}

func (r *SubcategoryRepository) CountProducts(ctx context.Context, id string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, countSubcategoryProductsSQL, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting products of subcategory %q: %w", id, err)
	}
	return n, nil
}

func scanSubcategory(row pgx.CollectableRow) (category.Subcategory, error) {
	var (
		s       category.Subcategory
		catName string
	)
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Image, &s.CategoryID, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt, &catName)
	s.Category = &product.Ref{ID: s.CategoryID, Name: catName}
	return s, err
}

// CollectionRepository implements collection.Repository.
type CollectionRepository struct {
	db DB
}

func NewCollectionRepository(db DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) Create(ctx context.Context, c *collection.Collection) error {
	err := r.db.QueryRow(ctx, createCollectionSQL, c.ID, c.Name, c.Description, c.Image, c.IsActive).
		Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return collection.ErrNameTaken
		}
		return fmt.Errorf("creating collection %q: %w", c.Name, err)
	}
	return nil
}

func (r *CollectionRepository) GetByID(ctx context.Context, id string) (*collection.Collection, error) {
	rows, err := r.db.Query(ctx, getCollectionSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting collection %q: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCollection)
	if err != nil {
		return nil, notFound(err, collection.ErrNotFound)
	}
	products, err := productSummaries(ctx, r.db, ownerCollection, []string{id})
	if err != nil {
		return nil, err
	}
	c.Products = nonNil(products[id])
	return &c, nil
}

func (r *CollectionRepository) List(ctx context.Context) ([]collection.Collection, error) {
	rows, err := r.db.Query(ctx, listCollectionSQL)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanCollection)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	ids := make([]string, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}
	products, err := productSummaries(ctx, r.db, ownerCollection, ids)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Products = nonNil(products[list[i].ID])
	}
	return list, nil
}

func (r *CollectionRepository) Update(ctx context.Context, c *collection.Collection) error {
	err := r.db.QueryRow(ctx, updateCollectionSQL, c.ID, c.Name, c.Description, c.Image, c.IsActive).
		Scan(&c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return collection.ErrNameTaken
		}
		return notFound(err, collection.ErrNotFound)
	}
	return nil
}

// Delete detaches the collection's products and removes it in one
// transaction. It returns the detached product ids.
func (r *CollectionRepository) Delete(ctx context.Context, id string) ([]string, error) {
	var detached []string
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, detachCollectionSQL, id)
		if err != nil {
			return fmt.Errorf("detaching products: %w", err)
		}
		detached, err = pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("detaching products: %w", err)
		}
		tag, err := tx.Exec(ctx, deleteCollectionSQL, id)
		if err != nil {
			return fmt.Errorf("deleting collection: %w", err)
		}
		return affected(tag, collection.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return detached, nil
}

func scanCollection(row pgx.CollectableRow) (collection.Collection, error) {
	var c collection.Collection
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Image, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// References implements product.References.
type References struct {
	db DB
}

func NewReferences(db DB) *References {
	return &References{db: db}
}

func (r *References) CategoryExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, categoryExistsSQL, id)
}

func (r *References) SubcategoryExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, subcategoryExistsSQL, id)
}

func (r *References) CollectionExists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, r.db, collectionExistsSQL, id)
}

func exists(ctx context.Context, q querier, sql, id string) (bool, error) {
	var ok bool
	if err := q.QueryRow(ctx, sql, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking %q: %w", id, err)
	}
	return ok, nil
}

// nonNil keeps empty relations encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
