package httppresentation

import (
	"net/http"
	"strings"

	appInventory "github.com/Zhima-Mochi/clubshop/internal/application/inventory"
	domainInventory "github.com/Zhima-Mochi/clubshop/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	StockQuantity int             `json:"stockQuantity"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	p, err := h.deps.Catalog.Create(r.Context(), appInventory.CreateProductInput{
		ID:            strings.TrimSpace(req.ID),
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		UnitPrice:     req.UnitPrice,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	UnitPrice   *decimal.Decimal `json:"unitPrice"`
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	p, err := h.deps.Catalog.Update(r.Context(), appInventory.UpdateProductInput{
		ID:          pathID(r),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Catalog.Delete(r.Context(), pathID(r)); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.deps.Catalog.Get(r.Context(), pathID(r))
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// handleListProducts accepts category, q, available and maxStock query parameters.
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	available, err := queryBool(r, "available")
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	maxStock, err := queryInt(r, "maxStock")
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	products, err := h.deps.Catalog.List(r.Context(), domainInventory.Filter{
		Category:      domainInventory.Category(strings.TrimSpace(r.URL.Query().Get("category"))),
		Query:         r.URL.Query().Get("q"),
		AvailableOnly: available,
		MaxStock:      maxStock,
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

type adjustStockRequest struct {
	Operation string `json:"operation"`
	Quantity  int    `json:"quantity"`
}

type stockResponse struct {
	ProductID     string `json:"productId"`
	StockQuantity int    `json:"stockQuantity"`
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}

	id := pathID(r)
	left, err := h.deps.Catalog.AdjustStock(r.Context(), appInventory.AdjustStockInput{
		ProductID: id,
		Operation: appInventory.StockOperation(req.Operation),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: id, StockQuantity: left})
}
