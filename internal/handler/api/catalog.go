// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/olegiv/storefront/internal/cache"
	"github.com/olegiv/storefront/internal/handler"
	"github.com/olegiv/storefront/internal/localize"
	"github.com/olegiv/storefront/internal/logging"
	"github.com/olegiv/storefront/internal/middleware"
	"github.com/olegiv/storefront/internal/model"
	"github.com/olegiv/storefront/internal/store"
	"github.com/olegiv/storefront/internal/util"
)

// CategoryView is a category localized for the request language.
type CategoryView struct {
	ID          int64  `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Position    int64  `json:"position"`
}

// ProductView is a product localized for the request language.
type ProductView struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"categoryId"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Ingredients string          `json:"ingredients"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	IsAvailable bool            `json:"isAvailable"`
	IsPopular   bool            `json:"isPopular"`
}

func newCategoryView(c model.Category, lang, primary string) CategoryView {
	text := localize.Localize(c.Localizable(), model.CategoryFields, lang, primary)
	return CategoryView{
		ID:          c.ID,
		Slug:        c.Slug,
		Name:        text[model.FieldName],
		Description: text[model.FieldDescription],
		Icon:        c.Icon,
		Position:    c.Position,
	}
}

func newProductView(p model.Product, lang, primary string) ProductView {
	text := localize.Localize(p.Localizable(), model.ProductFields, lang, primary)
	return ProductView{
		ID:          p.ID,
		CategoryID:  p.CategoryID,
		Slug:        p.Slug,
		Name:        text[model.FieldName],
		Description: text[model.FieldDescription],
		Ingredients: text[model.FieldIngredients],
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		IsAvailable: p.IsAvailable,
		IsPopular:   p.IsPopular,
	}
}

// languages returns the request language and the primary language. A
// language that is not enabled resolves as the primary one.
func (h *Handler) languages(r *http.Request) (lang, primary string) {
	s := h.settings.Get(r.Context())
	primary = s.Primary()
	lang = middleware.GetLanguageCode(r)
	if !s.IsEnabled(lang) {
		lang = primary
	}
	return lang, primary
}

// ListCategories handles GET /api/categories. Only active categories are listed.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	p := handler.ParsePagination(r)
	page, err := h.catalog.Categories(r.Context(), int64(p.Page), int64(p.PerPage),
		func(ctx context.Context) (cache.CategoryPage, error) {
			items, total, err := handler.ListAndCount(
				func() ([]model.Category, error) { return h.queries.ListCategories(ctx, true, p.Limit(), p.Offset()) },
				func() (int64, error) { return h.queries.CountCategories(ctx, true) },
			)
			return cache.CategoryPage{Items: items, Total: total}, err
		})
	if err != nil {
		h.writeInternalError(w, r, "failed to list categories", err)
		return
	}

	lang, primary := h.languages(r)
	views := make([]CategoryView, 0, len(page.Items))
	for _, c := range page.Items {
		views = append(views, newCategoryView(c, lang, primary))
	}
	meta := p.WithTotal(page.Total)
	WriteSuccess(w, views, &meta)
}

// GetCategory handles GET /api/categories/{id}. Inactive categories are not found.
func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := requireEntityByID(h, w, r, "category", func(id int64) (model.Category, error) {
		return h.queries.GetCategory(r.Context(), id)
	})
	if !ok {
		return
	}
	if !c.IsActive {
		writeNotFound(w, r)
		return
	}
	lang, primary := h.languages(r)
	WriteSuccess(w, newCategoryView(c, lang, primary), nil)
}

// ListProducts handles GET /api/products. Supports category_id and popular
// filters; unavailable products are hidden.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p := handler.ParsePagination(r)
	q := cache.ProductQuery{
		CategoryID:  handler.ParseInt64Query(r, "category_id"),
		PopularOnly: handler.ParseBoolQuery(r, "popular"),
		Page:        int64(p.Page),
		PerPage:     int64(p.PerPage),
	}
	page, err := h.catalog.Products(r.Context(), q, func(ctx context.Context) (cache.ProductPage, error) {
		arg := store.ListProductsParams{
			CategoryID:    q.CategoryID,
			AvailableOnly: true,
			PopularOnly:   q.PopularOnly,
			Limit:         p.Limit(),
			Offset:        p.Offset(),
		}
		items, total, err := handler.ListAndCount(
			func() ([]model.Product, error) { return h.queries.ListProducts(ctx, arg) },
			func() (int64, error) { return h.queries.CountProducts(ctx, arg) },
		)
		return cache.ProductPage{Items: items, Total: total}, err
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to list products", err)
		return
	}

	lang, primary := h.languages(r)
	views := make([]ProductView, 0, len(page.Items))
	for _, item := range page.Items {
		views = append(views, newProductView(item, lang, primary))
	}
	meta := p.WithTotal(page.Total)
	WriteSuccess(w, views, &meta)
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := requireEntityByID(h, w, r, "product", func(id int64) (model.Product, error) {
		return h.catalog.Product(r.Context(), id, func(ctx context.Context) (model.Product, error) {
			return h.queries.GetProduct(ctx, id)
		})
	})
	if !ok {
		return
	}
	lang, primary := h.languages(r)
	WriteSuccess(w, newProductView(p, lang, primary), nil)
}

// CategoryRequest creates or updates a category. Name and Description are
// the primary-language values; Translations holds sibling keys.
type CategoryRequest struct {
	Slug         string            `json:"slug" validate:"omitempty,slug,max=100"`
	Name         string            `json:"name" validate:"required,max=200"`
	Description  string            `json:"description" validate:"max=2000"`
	Icon         string            `json:"icon" validate:"max=64"`
	Position     int64             `json:"position" validate:"gte=0"`
	IsActive     bool              `json:"isActive"`
	Translations map[string]string `json:"translations" validate:"omitempty,dive,max=2000"`
}

func (req CategoryRequest) apply(c *model.Category) {
	c.Name = strings.TrimSpace(req.Name)
	c.Description = req.Description
	c.Icon = req.Icon
	c.Position = req.Position
	c.IsActive = req.IsActive
	c.Translations = model.Fields{}
	maps.Copy(c.Translations, req.Translations)
}

// ProductRequest creates or updates a product.
type ProductRequest struct {
	CategoryID   int64             `json:"categoryId" validate:"required,gt=0"`
	Slug         string            `json:"slug" validate:"omitempty,slug,max=100"`
	Name         string            `json:"name" validate:"required,max=200"`
	Description  string            `json:"description" validate:"max=2000"`
	Ingredients  string            `json:"ingredients" validate:"max=2000"`
	Price        decimal.Decimal   `json:"price" validate:"gte=0"`
	ImageURL     string            `json:"imageUrl" validate:"max=2048"`
	IsAvailable  bool              `json:"isAvailable"`
	IsPopular    bool              `json:"isPopular"`
	Position     int64             `json:"position" validate:"gte=0"`
	Translations map[string]string `json:"translations" validate:"omitempty,dive,max=2000"`
}

func (req ProductRequest) apply(p *model.Product) {
	p.CategoryID = req.CategoryID
	p.Name = strings.TrimSpace(req.Name)
	p.Description = req.Description
	p.Ingredients = req.Ingredients
	p.Price = req.Price
	p.ImageURL = req.ImageURL
	p.IsAvailable = req.IsAvailable
	p.IsPopular = req.IsPopular
	p.Position = req.Position
	p.Translations = model.Fields{}
	maps.Copy(p.Translations, req.Translations)
}

// AdminListCategories handles GET /api/admin/categories. Inactive
// categories are included and records carry every translation.
func (h *Handler) AdminListCategories(w http.ResponseWriter, r *http.Request) {
	p := handler.ParsePagination(r)
	items, total, err := handler.ListAndCount(
		func() ([]model.Category, error) { return h.queries.ListCategories(r.Context(), false, p.Limit(), p.Offset()) },
		func() (int64, error) { return h.queries.CountCategories(r.Context(), false) },
	)
	if err != nil {
		h.writeInternalError(w, r, "failed to list categories", err)
		return
	}
	if items == nil {
		items = []model.Category{}
	}
	meta := p.WithTotal(total)
	WriteSuccess(w, items, &meta)
}

// AdminGetCategory handles GET /api/admin/categories/{id}.
func (h *Handler) AdminGetCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := requireEntityByID(h, w, r, "category", func(id int64) (model.Category, error) {
		return h.queries.GetCategory(r.Context(), id)
	})
	if !ok {
		return
	}
	WriteSuccess(w, c, nil)
}

// CreateCategory handles POST /api/admin/categories.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validTextKeys(req.Translations, model.CategoryFields, "translations"); errs != nil {
		writeValidationError(w, r, errs)
		return
	}
	var c model.Category
	req.apply(&c)

	slug, err := h.uniqueSlug(r.Context(), req.Slug, c.Name, "category", 0, h.queries.CategorySlugTaken)
	if err != nil {
		h.writeInternalError(w, r, "failed to generate category slug", err)
		return
	}
	c.Slug = slug

	created, err := h.queries.CreateCategory(r.Context(), c, h.now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to create category", err)
		return
	}
	h.invalidateCatalog(r.Context())
	h.logger.Info("category created",
		logging.AttrCategory, model.EventCategoryCatalog,
		logging.AttrUserID, middleware.GetUserID(r),
		"category_id", created.ID, "slug", created.Slug)
	WriteCreated(w, created)
}

// UpdateCategory handles PUT /api/admin/categories/{id}.
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := requireEntityByID(h, w, r, "category", func(id int64) (model.Category, error) {
		return h.queries.GetCategory(r.Context(), id)
	})
	if !ok {
		return
	}
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if errs := validTextKeys(req.Translations, model.CategoryFields, "translations"); errs != nil {
		writeValidationError(w, r, errs)
		return
	}
	req.apply(&c)

	if req.Slug != "" && req.Slug != c.Slug {
		taken, err := h.queries.CategorySlugTaken(r.Context(), req.Slug, c.ID)
		if err != nil {
			h.writeInternalError(w, r, "failed to check category slug", err)
			return
		}
		if taken {
			writeValidationError(w, r, map[string]string{"slug": "is already in use"})
			return
		}
		c.Slug = req.Slug
	}

	updated, err := h.queries.UpdateCategory(r.Context(), c, h.now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to update category", err, "category_id", c.ID)
		return
	}
	h.invalidateCatalog(r.Context())
	WriteSuccess(w, updated, nil)
}

// DeleteCategory handles DELETE /api/admin/categories/{id}. Products of the
// category are deleted with it.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	c, ok := requireEntityByID(h, w, r, "category", func(id int64) (model.Category, error) {
		return h.queries.GetCategory(r.Context(), id)
	})
	if !ok {
		return
	}
	if err := h.queries.DeleteCategory(r.Context(), c.ID); err != nil {
		h.writeInternalError(w, r, "failed to delete category", err, "category_id", c.ID)
		return
	}
	h.invalidateCatalog(r.Context())
	h.logger.Info("category deleted",
		logging.AttrCategory, model.EventCategoryCatalog,
		logging.AttrUserID, middleware.GetUserID(r),
		"category_id", c.ID)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateCategoryText handles PUT /api/admin/categories/{id}/text.
func (h *Handler) UpdateCategoryText(w http.ResponseWriter, r *http.Request) {
	var req LocalizedUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mutateLocalized(h, w, r, "category", getCategory, saveCategory(h),
		func(_ model.Fields, primary string) (model.Fields, map[string]string, error) {
			change, errs := applyLocalized(model.CategoryFields, req.Values, req.Lang, primary)
			return change, errs, nil
		})
}

// CopyCategoryText handles POST /api/admin/categories/{id}/copy-from-default.
func (h *Handler) CopyCategoryText(w http.ResponseWriter, r *http.Request) {
	var req CopyFromDefaultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mutateLocalized(h, w, r, "category", getCategory, saveCategory(h),
		func(current model.Fields, primary string) (model.Fields, map[string]string, error) {
			change, err := copyLocalized(current, model.CategoryFields, req.Fields, req.Lang, primary)
			return change, nil, err
		})
}

// AdminListProducts handles GET /api/admin/products. Unavailable products
// are included; category_id filters.
func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	p := handler.ParsePagination(r)
	arg := store.ListProductsParams{
		CategoryID:  handler.ParseInt64Query(r, "category_id"),
		PopularOnly: handler.ParseBoolQuery(r, "popular"),
		Limit:       p.Limit(),
		Offset:      p.Offset(),
	}
	items, total, err := handler.ListAndCount(
		func() ([]model.Product, error) { return h.queries.ListProducts(r.Context(), arg) },
		func() (int64, error) { return h.queries.CountProducts(r.Context(), arg) },
	)
	if err != nil {
		h.writeInternalError(w, r, "failed to list products", err)
		return
	}
	if items == nil {
		items = []model.Product{}
	}
	meta := p.WithTotal(total)
	WriteSuccess(w, items, &meta)
}

// AdminGetProduct handles GET /api/admin/products/{id}.
func (h *Handler) AdminGetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := requireEntityByID(h, w, r, "product", func(id int64) (model.Product, error) {
		return h.queries.GetProduct(r.Context(), id)
	})
	if !ok {
		return
	}
	WriteSuccess(w, p, nil)
}

// CreateProduct handles POST /api/admin/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.validateProductRequest(w, r, req) {
		return
	}
	var p model.Product
	req.apply(&p)

	slug, err := h.uniqueSlug(r.Context(), req.Slug, p.Name, "product", 0, h.queries.ProductSlugTaken)
	if err != nil {
		h.writeInternalError(w, r, "failed to generate product slug", err)
		return
	}
	p.Slug = slug

	created, err := h.queries.CreateProduct(r.Context(), p, h.now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to create product", err)
		return
	}
	h.invalidateCatalog(r.Context())
	h.publishProduct(r.Context(), created, false)
	h.logger.Info("product created",
		logging.AttrCategory, model.EventCategoryCatalog,
		logging.AttrUserID, middleware.GetUserID(r),
		"product_id", created.ID, "slug", created.Slug)
	WriteCreated(w, created)
}

// UpdateProduct handles PUT /api/admin/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := requireEntityByID(h, w, r, "product", func(id int64) (model.Product, error) {
		return h.queries.GetProduct(r.Context(), id)
	})
	if !ok {
		return
	}
	var req ProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !h.validateProductRequest(w, r, req) {
		return
	}
	req.apply(&p)

	if req.Slug != "" && req.Slug != p.Slug {
		taken, err := h.queries.ProductSlugTaken(r.Context(), req.Slug, p.ID)
		if err != nil {
			h.writeInternalError(w, r, "failed to check product slug", err)
			return
		}
		if taken {
			writeValidationError(w, r, map[string]string{"slug": "is already in use"})
			return
		}
		p.Slug = req.Slug
	}

	updated, err := h.queries.UpdateProduct(r.Context(), p, h.now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to update product", err, "product_id", p.ID)
		return
	}
	h.invalidateCatalog(r.Context())
	h.publishProduct(r.Context(), updated, false)
	WriteSuccess(w, updated, nil)
}

// DeleteProduct handles DELETE /api/admin/products/{id}. Existing orders
// keep their item snapshot.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := requireEntityByID(h, w, r, "product", func(id int64) (model.Product, error) {
		return h.queries.GetProduct(r.Context(), id)
	})
	if !ok {
		return
	}
	if err := h.queries.DeleteProduct(r.Context(), p.ID); err != nil {
		h.writeInternalError(w, r, "failed to delete product", err, "product_id", p.ID)
		return
	}
	h.invalidateCatalog(r.Context())
	h.publishProduct(r.Context(), p, true)
	h.logger.Info("product deleted",
		logging.AttrCategory, model.EventCategoryCatalog,
		logging.AttrUserID, middleware.GetUserID(r),
		"product_id", p.ID)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateProductText handles PUT /api/admin/products/{id}/text.
func (h *Handler) UpdateProductText(w http.ResponseWriter, r *http.Request) {
	var req LocalizedUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mutateLocalized(h, w, r, "product", getProduct, saveProduct(h),
		func(_ model.Fields, primary string) (model.Fields, map[string]string, error) {
			change, errs := applyLocalized(model.ProductFields, req.Values, req.Lang, primary)
			return change, errs, nil
		})
}

// CopyProductText handles POST /api/admin/products/{id}/copy-from-default.
func (h *Handler) CopyProductText(w http.ResponseWriter, r *http.Request) {
	var req CopyFromDefaultRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mutateLocalized(h, w, r, "product", getProduct, saveProduct(h),
		func(current model.Fields, primary string) (model.Fields, map[string]string, error) {
			change, err := copyLocalized(current, model.ProductFields, req.Fields, req.Lang, primary)
			return change, nil, err
		})
}

// validateProductRequest checks translation keys and that the category exists.
func (h *Handler) validateProductRequest(w http.ResponseWriter, r *http.Request, req ProductRequest) bool {
	if errs := validTextKeys(req.Translations, model.ProductFields, "translations"); errs != nil {
		writeValidationError(w, r, errs)
		return false
	}
	if _, err := h.queries.GetCategory(r.Context(), req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeValidationError(w, r, map[string]string{"categoryId": "category does not exist"})
		} else {
			h.writeInternalError(w, r, "failed to check product category", err)
		}
		return false
	}
	return true
}

func getCategory(ctx context.Context, q *store.Queries, id int64) (model.Category, error) {
	return q.GetCategory(ctx, id)
}

func saveCategory(h *Handler) func(context.Context, *store.Queries, model.Category) (model.Category, error) {
	return func(ctx context.Context, q *store.Queries, c model.Category) (model.Category, error) {
		return q.UpdateCategory(ctx, c, h.now().UTC())
	}
}

func getProduct(ctx context.Context, q *store.Queries, id int64) (model.Product, error) {
	return q.GetProduct(ctx, id)
}

func saveProduct(h *Handler) func(context.Context, *store.Queries, model.Product) (model.Product, error) {
	return func(ctx context.Context, q *store.Queries, p model.Product) (model.Product, error) {
		return q.UpdateProduct(ctx, p, h.now().UTC())
	}
}

// localizable is a catalog record whose translatable fields can be read and
// written as storage keys.
type localizable[T any] interface {
	*T
	Localizable() model.Fields
	SetLocalizable(model.Fields)
}

// mutateLocalized applies a text change to the record {id} inside a
// transaction. compute receives the current storage values and the primary
// language.
func mutateLocalized[T any, P localizable[T]](h *Handler, w http.ResponseWriter, r *http.Request, name string,
	get func(context.Context, *store.Queries, int64) (T, error),
	save func(context.Context, *store.Queries, T) (T, error),
	compute func(current model.Fields, primary string) (model.Fields, map[string]string, error)) {
	id, err := handler.ParseIDParam(r)
	if err != nil {
		writeBadRequest(w, r)
		return
	}
	primary := h.settings.Get(r.Context()).Primary()

	var saved T
	var fieldErrs map[string]string
	err = store.InTx(r.Context(), h.db, func(q *store.Queries) error {
		v, err := get(r.Context(), q, id)
		if err != nil {
			return err
		}
		change, errs, err := compute(P(&v).Localizable(), primary)
		if err != nil {
			return err
		}
		if errs != nil {
			fieldErrs = errs
			return errFieldValidation
		}
		P(&v).SetLocalizable(change)
		saved, err = save(r.Context(), q, v)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		writeNotFound(w, r)
		return
	}
	if writeLocalizedMutationError(w, r, err, fieldErrs) {
		return
	}
	if err != nil {
		h.writeInternalError(w, r, "failed to update "+name+" text", err, name+"_id", id)
		return
	}
	h.invalidateCatalog(r.Context())
	if p, ok := any(saved).(model.Product); ok {
		h.publishProduct(r.Context(), p, false)
	}
	WriteSuccess(w, saved, nil)
}

// uniqueSlug returns requested when given, otherwise a slug derived from
// name with the first free numeric suffix. Requested slugs that are taken
// get a suffix too.
func (h *Handler) uniqueSlug(ctx context.Context, requested, name, fallback string, excludeID int64,
	taken util.SlugTaken) (string, error) {
	base := requested
	if base == "" {
		base = util.Slugify(name)
	}
	if base == "" {
		base = fallback
	}
	return util.FreeSlug(ctx, base, 1, excludeID, taken)
}

// invalidateCatalog drops cached public catalog pages after an admin write.
func (h *Handler) invalidateCatalog(ctx context.Context) {
	if err := h.catalog.Invalidate(ctx); err != nil {
		h.logger.Warn("failed to invalidate catalog cache",
			logging.AttrCategory, model.EventCategoryCache,
			"error", err)
	}
	if h.onCatalogChange != nil {
		h.onCatalogChange()
	}
}
