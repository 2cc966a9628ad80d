package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/egannguyen/storefront/internal/bundle"
	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/service"
)

// CartHeader carries the shopper's cart id on every cart, bundle and order
// request. A missing id is generated and echoed back.
const CartHeader = "X-Cart-ID"

// Handler handles HTTP requests for the application.
type Handler struct {
	cartSvc         *service.CartService
	orderSvc        *service.OrderService
	defaultShipping decimal.Decimal
}

func NewHandler(cartSvc *service.CartService, orderSvc *service.OrderService, defaultShipping decimal.Decimal) *Handler {
	return &Handler{
		cartSvc:         cartSvc,
		orderSvc:        orderSvc,
		defaultShipping: defaultShipping,
	}
}

// Router returns the API with its middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(EnableCORS)
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.handleGetProducts)

		r.Get("/cart", h.handleGetCart)
		r.Delete("/cart", h.handleClearCart)
		r.Get("/cart/totals", h.handleGetTotals)
		r.Post("/cart/items", h.handleAddItem)
		r.Put("/cart/items/{id}", h.handleUpdateItem)
		r.Delete("/cart/items/{id}", h.handleRemoveItem)

		r.Get("/bundle", h.handleGetBundle)
		r.Delete("/bundle", h.handleClearBundle)
		r.Put("/bundle/slots/{slot}", h.handleAssignSlot)
		r.Delete("/bundle/slots/{slot}", h.handleClearSlot)
		r.Post("/bundle/cart", h.handleAddBundle)

		r.Post("/orders", h.handleCreateOrder)
		r.Get("/orders", h.handleGetOrders)
	})
}

func cartID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(CartHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(CartHeader, id)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, bundle.ErrUnknownSlot):
		status = http.StatusBadRequest
	case errors.Is(err, bundle.ErrIncomplete),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInsufficientStock):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func (h *Handler) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.orderSvc.GetProducts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	id := cartID(w, r)
	if r.Header.Get(CartHeader) == "" {
		// A freshly minted id has nothing stored yet.
		writeJSON(w, http.StatusOK, service.CartView{CartID: id, Items: []entity.CartLineItem{}})
		return
	}
	v, err := h.cartSvc.Cart(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cartSvc.Clear(r.Context(), cartID(w, r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseShipping reads ?shipping=, falling back to the configured default.
func (h *Handler) parseShipping(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return h.defaultShipping, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, errors.New("shipping must be a non-negative decimal")
	}
	return d, nil
}

func (h *Handler) handleGetTotals(w http.ResponseWriter, r *http.Request) {
	id := cartID(w, r)
	shipping, err := h.parseShipping(r.URL.Query().Get("shipping"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	totals, err := h.cartSvc.Totals(r.Context(), id, shipping)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id := cartID(w, r)
	var req AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	v, err := h.cartSvc.AddProduct(r.Context(), id, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := cartID(w, r)
	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	v, err := h.cartSvc.UpdateQuantity(r.Context(), id, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	v, err := h.cartSvc.RemoveItem(r.Context(), cartID(w, r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleGetBundle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cartSvc.Selection(cartID(w, r)))
}

func (h *Handler) handleClearBundle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cartSvc.ClearBundle(cartID(w, r)))
}

type AssignSlotRequest struct {
	ProductID string `json:"product_id"`
}

func (h *Handler) handleAssignSlot(w http.ResponseWriter, r *http.Request) {
	id := cartID(w, r)
	slot, err := bundle.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req AssignSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	sel, err := h.cartSvc.AssignSlot(r.Context(), id, slot, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *Handler) handleClearSlot(w http.ResponseWriter, r *http.Request) {
	id := cartID(w, r)
	slot, err := bundle.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	sel, err := h.cartSvc.ClearSlot(id, slot)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *Handler) handleAddBundle(w http.ResponseWriter, r *http.Request) {
	v, err := h.cartSvc.AddBundle(r.Context(), cartID(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type CreateOrderRequest struct {
	Shipping *decimal.Decimal `json:"shipping,omitempty"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	id := cartID(w, r)
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	shipping := h.defaultShipping
	if req.Shipping != nil {
		if req.Shipping.IsNegative() {
			http.Error(w, "shipping must be a non-negative decimal", http.StatusBadRequest)
			return
		}
		shipping = *req.Shipping
	}

	cmd, err := h.orderSvc.Checkout(r.Context(), id, shipping)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id": cmd.OrderID,
		"status":   "placed",
		"totals":   cmd.Totals,
	})
}

func (h *Handler) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.GetRecentOrders(r.Context(), 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// EnableCORS is a middleware to allow the React frontend to connect.
func EnableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+CartHeader)
		w.Header().Set("Access-Control-Expose-Headers", CartHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
