package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/Frida144/site-segnorito/internal/domain"
	"github.com/Frida144/site-segnorito/internal/feedback"
	"github.com/Frida144/site-segnorito/internal/service"
	"github.com/Frida144/site-segnorito/internal/view"
	apperrors "github.com/Frida144/site-segnorito/pkg/errors"
	"github.com/Frida144/site-segnorito/pkg/httputil"
	"github.com/Frida144/site-segnorito/pkg/validator"
)

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
// Price accepts numbers and numeric strings; anything else counts as 0.
type AddItemRequest struct {
	ID       string       `json:"id" validate:"required,notblank,max=200"`
	Name     string       `json:"name" validate:"max=500"`
	Price    domain.Price `json:"price" validate:"gte=0,lte=1000000000"`
	Image    string       `json:"image" validate:"max=2000"`
	Quantity int          `json:"quantity" validate:"gte=0,lte=9999"`
}

// ChangeQuantityRequest is the JSON request body for a relative quantity
// change.
type ChangeQuantityRequest struct {
	Delta int `json:"delta" validate:"ne=0,gte=-9999,lte=9999"`
}

// SetQuantityRequest is the JSON request body for overwriting a quantity.
type SetQuantityRequest struct {
	Quantity Quantity `json:"quantity"`
}

// Quantity is a manually entered quantity. It decodes from a number or a
// string; anything else decodes to NaN, which the store coerces to 1.
type Quantity float64

func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*q = Quantity(view.ParseQuantity(s))
			return nil
		}
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*q = Quantity(math.NaN())
		return nil
	}
	*q = Quantity(f)
	return nil
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.writeCart(w, http.StatusOK, h.store(r).Load(r.Context()))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	live := h.live(r)
	if err := live.store.Clear(r.Context()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeLive(w, domain.Cart{}, live)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	live := h.live(r)
	cart, err := live.store.Add(r.Context(), service.AddItemInput{
		ID:       req.ID,
		Name:     req.Name,
		Price:    req.Price,
		Image:    req.Image,
		Quantity: req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.flasher.Flash(feedback.Key(sessionID(r), req.ID))

	h.writeLive(w, cart, live)
}

// ChangeQuantity handles PATCH /api/v1/cart/items/{id}
func (h *CartHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req ChangeQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	live := h.live(r)
	cart, err := live.store.ChangeQuantity(r.Context(), itemID(r), req.Delta)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeLive(w, cart, live)
}

// SetQuantity handles PUT /api/v1/cart/items/{id}
func (h *CartHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req SetQuantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	live := h.live(r)
	cart, err := live.store.SetQuantity(r.Context(), itemID(r), float64(req.Quantity))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeLive(w, cart, live)
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	live := h.live(r)
	cart, err := live.store.Remove(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.flasher.Cancel(feedback.Key(sessionID(r), id))
	h.writeLive(w, cart, live)
}

// --- Helpers ---

// decode reads and validates the request body, writing the error response
// itself when it fails.
func (h *CartHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return true
	}

	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		httputil.WriteValidationError(w, err)
		return false
	}
	httputil.WriteError(w, r, apperrors.InvalidInput("invalid request body: "+err.Error()), h.logger)
	return false
}

func (h *CartHandler) writeCart(w http.ResponseWriter, status int, cart domain.Cart) {
	h.writeModel(w, status, h.renderer.Model(cart))
}

// writeLive answers a mutation. When the write re-rendered the page the
// response also carries the new rows and their bindings.
func (h *CartHandler) writeLive(w http.ResponseWriter, cart domain.Cart, live *liveCart) {
	model := h.renderer.Model(cart)
	if rows := live.page.HTML(view.CartItemsID); rows != "" {
		model.RowsHTML = rows
		model.Bindings = live.refresher.Bindings()
	}
	h.writeModel(w, http.StatusOK, model)
}

func (h *CartHandler) writeModel(w http.ResponseWriter, status int, model view.CartModel) {
	w.Header().Set(CartCountHeader, strconv.Itoa(model.Count))
	httputil.WriteJSON(w, status, httputil.Response{Data: model})
}
