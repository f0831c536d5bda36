package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aimennsou/testecom/internal/domain"
	"github.com/aimennsou/testecom/internal/service"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	AddItem(ctx context.Context, productID int64, quantity int32, unitPrice float64) (string, error)
	RemoveItem(ctx context.Context, itemID string) error
	ListItems(ctx context.Context) ([]domain.CartItem, error)
}

type CartHandler struct {
	cart CartService
}

func NewCartHandler(cart CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

type AddItemRequestDTO struct {
	ProductID int64   `json:"product_id"`
	Quantity  int32   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type AddItemResponseDTO struct {
	CartID string `json:"cart_id"`
}

type CartResponseDTO struct {
	Items []domain.CartItem `json:"items"`
	Total float64           `json:"total"`
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cartID, err := h.cart.AddItem(r.Context(), req.ProductID, req.Quantity, req.UnitPrice)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, AddItemResponseDTO{CartID: cartID})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	if err := h.cart.RemoveItem(r.Context(), itemID); err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.cart.ListItems(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if items == nil {
		items = []domain.CartItem{}
	}
	respondJSON(w, http.StatusOK, CartResponseDTO{
		Items: items,
		Total: service.ComputeTotal(items),
	})
}
