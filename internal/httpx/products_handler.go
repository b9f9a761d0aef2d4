package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ovenfresh/storefront/internal/catalog"
	"github.com/ovenfresh/storefront/internal/redisx"
)

// CatalogStore is the product surface the handler consumes; implemented by
// catalog.Repo and by the in-memory store in tests.
type CatalogStore interface {
	GetByID(ctx context.Context, id string) (*catalog.Product, error)
	ListAvailable(ctx context.Context) ([]catalog.Product, error)
	ListByCategory(ctx context.Context, category string) ([]catalog.Product, error)
	Search(ctx context.Context, term string) ([]catalog.Product, error)
	Create(ctx context.Context, p *catalog.Product) error
	Update(ctx context.Context, p *catalog.Product) error
	Delete(ctx context.Context, id string) error
}

type ProductsHandler struct {
	Store CatalogStore
	Redis *redis.Client
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Post("/products", h.createProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	search := r.URL.Query().Get("search")
	category := r.URL.Query().Get("category")

	var (
		ps  []catalog.Product
		err error
	)
	switch {
	case search != "":
		ps, err = h.Store.Search(ctx, search)
	case category != "":
		ps, err = h.Store.ListByCategory(ctx, category)
	default:
		// the unfiltered listing is the hot path; serve it from cache
		if h.Redis != nil {
			if s, cerr := h.Redis.Get(ctx, redisx.KeyCatalogAvailable).Result(); cerr == nil && s != "" {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(s))
				return
			}
		}
		ps, err = h.Store.ListAvailable(ctx)
		if err == nil && h.Redis != nil {
			if b, merr := json.Marshal(ps); merr == nil {
				_ = h.Redis.Set(ctx, redisx.KeyCatalogAvailable, b, redisx.TTLCatalogCache).Err()
			}
		}
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if ps == nil {
		ps = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if p.Name == "" || p.Price.IsNegative() || p.Stock < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Create(ctx, &p); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.invalidateListing(ctx)
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	p.ID = chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.Update(ctx, &p); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	h.invalidateListing(ctx)
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := h.Store.Delete(ctx, chi.URLParam(r, "id"))
	switch {
	case err == nil:
		h.invalidateListing(ctx)
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, catalog.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
	case errors.Is(err, catalog.ErrProductReferenced):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "product referenced by orders"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (h *ProductsHandler) invalidateListing(ctx context.Context) {
	if h.Redis != nil {
		_ = h.Redis.Del(ctx, redisx.KeyCatalogAvailable).Err()
	}
}
