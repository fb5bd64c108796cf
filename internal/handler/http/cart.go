package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Frida144/site-segnorito/internal/domain"
	"github.com/Frida144/site-segnorito/internal/feedback"
	"github.com/Frida144/site-segnorito/internal/service"
	"github.com/Frida144/site-segnorito/internal/view"
	apperrors "github.com/Frida144/site-segnorito/pkg/errors"
	"github.com/Frida144/site-segnorito/pkg/httputil"
)

// CartCountHeader carries the badge count on every cart response.
const CartCountHeader = "X-Cart-Count"

const pageTitle = "Votre panier"

// CartHandler serves the cart page, its form actions and the JSON API.
type CartHandler struct {
	carts    *service.Carts
	renderer *view.Renderer
	flasher  *feedback.Flasher
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(carts *service.Carts, renderer *view.Renderer, flasher *feedback.Flasher, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:    carts,
		renderer: renderer,
		flasher:  flasher,
		logger:   logger,
	}
}

func (h *CartHandler) store(r *http.Request, extra ...service.Listener) *service.CartStore {
	return h.carts.ForSession(sessionID(r), extra...)
}

// liveCart is a session store whose writes re-render a detached cart page.
type liveCart struct {
	store     *service.CartStore
	page      *view.Page
	refresher *view.Refresher
}

func (h *CartHandler) live(r *http.Request) *liveCart {
	page := view.NewCartPage()
	refresher := view.NewRefresher(page, h.renderer)
	return &liveCart{store: h.store(r, refresher), page: page, refresher: refresher}
}

// badged returns the session store together with a badge that follows its
// writes.
func (h *CartHandler) badged(r *http.Request) (*service.CartStore, *view.Page) {
	badge := view.NewPage(view.CartCountID)
	return h.store(r, view.Badge(badge)), badge
}

// setBadgeHeader copies the badge count, if a write produced one.
func setBadgeHeader(w http.ResponseWriter, badge *view.Page) {
	if count := badge.Text(view.CartCountID); count != "" {
		w.Header().Set(CartCountHeader, count)
	}
}

// --- Page handlers ---

// CartPage handles GET /cart
func (h *CartHandler) CartPage(w http.ResponseWriter, r *http.Request) {
	page := view.NewCartPage()
	h.renderer.RenderCartPage(page, h.store(r).Load(r.Context()))

	var buf bytes.Buffer
	if err := h.renderer.WritePage(&buf, pageTitle, page); err != nil {
		httputil.WriteError(w, r, apperrors.Internal(err), h.logger)
		return
	}

	w.Header().Set(CartCountHeader, page.Text(view.CartCountID))
	httputil.WriteHTML(w, http.StatusOK, buf.Bytes())
}

// AddItemForm handles POST /cart/items, submitted by an add-to-cart button.
func (h *CartHandler) AddItemForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid form: "+err.Error()), h.logger)
		return
	}

	input := service.AddItemInput{
		ID:    strings.TrimSpace(r.PostForm.Get("id")),
		Name:  r.PostForm.Get("name"),
		Price: domain.ParsePrice(r.PostForm.Get("price")),
		Image: r.PostForm.Get("image"),
	}
	if raw := strings.TrimSpace(r.PostForm.Get("quantity")); raw != "" {
		q, err := strconv.Atoi(raw)
		if err != nil || q < 0 || q > service.MaxQuantity {
			httputil.WriteError(w, r, apperrors.InvalidInput(
				fmt.Sprintf("quantity must be a whole number between 0 and %d", service.MaxQuantity)), h.logger)
			return
		}
		input.Quantity = q
	}

	store, badge := h.badged(r)
	if _, err := store.Add(r.Context(), input); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.flasher.Flash(feedback.Key(sessionID(r), input.ID))

	setBadgeHeader(w, badge)
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// ItemActionForm handles POST /cart/items/{id}/{action}, submitted by the
// row controls of the cart page.
func (h *CartHandler) ItemActionForm(w http.ResponseWriter, r *http.Request) {
	action, err := view.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	binding := view.Binding{ID: itemID(r), Action: action}
	store, badge := h.badged(r)
	if _, err := view.Dispatch(r.Context(), store, binding, r.FormValue("quantity")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if action == view.ActionRemove {
		h.flasher.Cancel(feedback.Key(sessionID(r), binding.ID))
	}

	setBadgeHeader(w, badge)
	http.Redirect(w, r, "/cart", http.StatusSeeOther)
}

// ButtonResponse is the current state of an add-to-cart button.
type ButtonResponse struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// ButtonLabel handles GET /cart/buttons/{id}
func (h *CartHandler) ButtonLabel(w http.ResponseWriter, r *http.Request) {
	id := itemID(r)
	key := feedback.Key(sessionID(r), id)
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ButtonResponse{
		ID:     id,
		Label:  h.flasher.Label(key),
		Active: h.flasher.Active(key),
	}})
}

// --- Helpers ---

func itemID(r *http.Request) string {
	raw := chi.URLParam(r, "id")
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

// backTo returns the same-host page the form was posted from, or /cart.
func backTo(r *http.Request) string {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || !strings.HasPrefix(ref.Path, "/") {
		return "/cart"
	}
	if ref.Host != "" && ref.Host != r.Host {
		return "/cart"
	}
	if strings.HasPrefix(ref.Path, "//") {
		return "/cart"
	}
	if ref.RawQuery != "" {
		return ref.Path + "?" + ref.RawQuery
	}
	return ref.Path
}
