package http

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frida144/site-segnorito/internal/domain"
	"github.com/Frida144/site-segnorito/internal/feedback"
	"github.com/Frida144/site-segnorito/internal/repository/memory"
	"github.com/Frida144/site-segnorito/internal/service"
	"github.com/Frida144/site-segnorito/internal/view"
	"github.com/Frida144/site-segnorito/pkg/health"
	"github.com/Frida144/site-segnorito/pkg/logger"
)

const testCookie = "senorito_session"

// ============================================================================
// Test helpers
// ============================================================================

type testEnv struct {
	router  http.Handler
	kv      *memory.Store
	clock   *clock.Mock
	flasher *feedback.Flasher
	cookie  *http.Cookie
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := logger.Discard()
	prices, err := view.NewPriceFormatter("fr-FR", "€")
	require.NoError(t, err)
	renderer, err := view.NewRenderer(prices)
	require.NoError(t, err)

	kv := memory.NewStore()
	clk := clock.NewMock()
	flasher := feedback.New(clk, feedback.DefaultDuration)
	handler := NewCartHandler(service.NewCarts(kv, domain.DefaultStorageKey, l), renderer, flasher, l)

	hh := health.NewHandler()
	hh.RegisterPinger("storage", kv)

	router := NewRouter(handler, hh, l, RouterConfig{
		Session:     SessionConfig{CookieName: testCookie, MaxAge: time.Hour},
		CORSOrigins: []string{"https://shop.example"},
	})
	return &testEnv{
		router:  router,
		kv:      kv,
		clock:   clk,
		flasher: flasher,
		cookie:  &http.Cookie{Name: testCookie, Value: "6f1f7a52-7a3b-4d53-9a55-1a2b3c4d5e6f"},
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(e.cookie)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) form(t *testing.T, target string, values url.Values, referer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	req.AddCookie(e.cookie)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type cartEnvelope struct {
	Data  view.CartModel `json:"data"`
	Error *struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartEnvelope {
	t.Helper()
	var env cartEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func tomato() map[string]any {
	return map[string]any{"id": "p1", "name": "Tomate", "price": 2.5, "image": "t.png"}
}

// ============================================================================
// Session
// ============================================================================

func TestSession_IssuesCookie(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestSession_KeepsValidCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", nil)

	assert.Empty(t, rec.Result().Cookies())
}

func TestSession_ReplacesMalformedCookie(t *testing.T) {
	env := newTestEnv(t)
	env.cookie = &http.Cookie{Name: testCookie, Value: "../../etc"}

	rec := env.do(t, http.MethodGet, "/api/v1/cart", nil)

	require.Len(t, rec.Result().Cookies(), 1)
	assert.NotEqual(t, "../../etc", rec.Result().Cookies()[0].Value)
}

func TestSession_CartsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", tomato())
	require.Equal(t, http.StatusOK, rec.Code)

	env.cookie = &http.Cookie{Name: testCookie, Value: "0b8a1c9e-2222-4e4e-8888-000000000000"}
	rec = env.do(t, http.MethodGet, "/api/v1/cart", nil)

	assert.Equal(t, 0, decodeCart(t, rec).Data.Count)
}

// ============================================================================
// JSON API
// ============================================================================

func TestAPI_GetEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get(CartCountHeader))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	env2 := decodeCart(t, rec)
	assert.Empty(t, env2.Data.Items)
	assert.Equal(t, "0,00€", env2.Data.TotalFormatted)
}

func TestAPI_AddScenario(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", tomato())
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeCart(t, rec)
	assert.Equal(t, "1", rec.Header().Get(CartCountHeader))
	require.Len(t, first.Data.Items, 1)
	assert.Equal(t, "p1", first.Data.Items[0].ID)
	assert.Equal(t, "2,50€", first.Data.TotalFormatted)

	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", tomato())
	second := decodeCart(t, rec)
	require.Len(t, second.Data.Items, 1)
	assert.Equal(t, 2, second.Data.Items[0].Quantity)
	assert.Equal(t, "5,00€", second.Data.TotalFormatted)

	rec = env.do(t, http.MethodPatch, "/api/v1/cart/items/p1", map[string]any{"delta": -2})
	third := decodeCart(t, rec)
	assert.Empty(t, third.Data.Items)
	assert.Equal(t, "0,00€", third.Data.TotalFormatted)
	assert.Equal(t, "0", rec.Header().Get(CartCountHeader))
}

func TestAPI_AddNonNumericPrice(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"id": "p9", "price": "gratuit"})

	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeCart(t, rec)
	require.Len(t, got.Data.Items, 1)
	assert.Equal(t, 0.0, got.Data.Items[0].Price)
}

func TestAPI_AddValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"name": "no id"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	got := decodeCart(t, rec)
	require.NotNil(t, got.Error)
	assert.Equal(t, "VALIDATION_ERROR", got.Error.Code)
	assert.Contains(t, got.Error.Fields, "id")
}

func TestAPI_AddMalformedBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(env.cookie)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RejectsNonJSON(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader("id=p1"))
	req.Header.Set("Content-Type", "text/plain")
	req.AddCookie(env.cookie)
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestAPI_ChangeQuantityRequiresDelta(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPatch, "/api/v1/cart/items/p1", map[string]any{"delta": 0})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_SetQuantity(t *testing.T) {
	tests := []struct {
		name     string
		quantity any
		want     int
	}{
		{"number", 4, 4},
		{"string", "3", 3},
		{"zero clamps", 0, 1},
		{"garbage", "beaucoup", 1},
		{"null", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.do(t, http.MethodPost, "/api/v1/cart/items", tomato())

			rec := env.do(t, http.MethodPut, "/api/v1/cart/items/p1", map[string]any{"quantity": tt.quantity})

			require.Equal(t, http.StatusOK, rec.Code)
			got := decodeCart(t, rec)
			require.Len(t, got.Data.Items, 1)
			assert.Equal(t, tt.want, got.Data.Items[0].Quantity)
		})
	}
}

func TestAPI_RemoveAndClear(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/cart/items", tomato())
	env.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{"id": "p2", "price": 1})

	rec := env.do(t, http.MethodDelete, "/api/v1/cart/items/p1", nil)
	got := decodeCart(t, rec)
	require.Len(t, got.Data.Items, 1)
	assert.Equal(t, "p2", got.Data.Items[0].ID)

	rec = env.do(t, http.MethodDelete, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, env.kv.Len())
}

func TestAPI_MalformedStorageIsEmptyCart(t *testing.T) {
	env := newTestEnv(t)
	key := service.SessionKey(domain.DefaultStorageKey, env.cookie.Value)
	require.NoError(t, env.kv.Set(t.Context(), key, "not json"))

	rec := env.do(t, http.MethodGet, "/api/v1/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, rec).Data.Items)
}

func TestAPI_CORSPreflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart/items", nil)
	req.Header.Set("Origin", "https://shop.example")
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), CartCountHeader)
}

// ============================================================================
// Pages and forms
// ============================================================================

func TestCartPage_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "<p>Votre panier est vide.</p>")
	assert.Contains(t, body, `<span id="cart-total">0,00€</span>`)
	assert.Contains(t, body, `<span id="cart-count">0</span>`)
}

func TestAddItemForm_RedirectsBack(t *testing.T) {
	env := newTestEnv(t)

	rec := env.form(t, "/cart/items", url.Values{
		"id": {"p1"}, "name": {"Tomate"}, "price": {"2,50"}, "image": {"t.png"},
	}, "http://example.com/produits?page=2")

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/produits?page=2", rec.Header().Get("Location"))

	page := env.do(t, http.MethodGet, "/cart", nil).Body.String()
	assert.Contains(t, page, `class="qty-increase" data-id="p1"`)
	assert.Contains(t, page, `<span id="cart-total">2,50€</span>`)
	assert.Contains(t, page, `<span id="cart-count">1</span>`)
}

func TestAddItemForm_ForeignRefererGoesToCart(t *testing.T) {
	env := newTestEnv(t)

	rec := env.form(t, "/cart/items", url.Values{"id": {"p1"}}, "https://evil.example/phish")

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get("Location"))
}

func TestAddItemForm_MissingID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.form(t, "/cart/items", url.Values{"name": {"Tomate"}}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, env.kv.Len())
}

func TestItemActionForm(t *testing.T) {
	env := newTestEnv(t)
	env.form(t, "/cart/items", url.Values{"id": {"p1"}, "price": {"2.5"}}, "")

	rec := env.form(t, "/cart/items/p1/increase", nil, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/cart", rec.Header().Get("Location"))
	assert.Equal(t, "2", env.do(t, http.MethodGet, "/api/v1/cart", nil).Header().Get(CartCountHeader))

	env.form(t, "/cart/items/p1/set", url.Values{"quantity": {"7"}}, "")
	assert.Equal(t, "7", env.do(t, http.MethodGet, "/api/v1/cart", nil).Header().Get(CartCountHeader))

	env.form(t, "/cart/items/p1/remove", nil, "")
	assert.Equal(t, "0", env.do(t, http.MethodGet, "/api/v1/cart", nil).Header().Get(CartCountHeader))
}

func TestItemActionForm_UnknownAction(t *testing.T) {
	env := newTestEnv(t)

	rec := env.form(t, "/cart/items/p1/explode", nil, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestButtonLabel_Feedback(t *testing.T) {
	env := newTestEnv(t)

	label := func() ButtonResponse {
		var resp struct {
			Data ButtonResponse `json:"data"`
		}
		rec := env.do(t, http.MethodGet, "/cart/buttons/p1", nil)
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		return resp.Data
	}

	assert.Equal(t, feedback.LabelIdle, label().Label)

	env.form(t, "/cart/items", url.Values{"id": {"p1"}}, "")
	got := label()
	assert.Equal(t, feedback.LabelAdded, got.Label)
	assert.True(t, got.Active)

	env.clock.Add(feedback.DefaultDuration)
	require.Eventually(t, func() bool { return label().Label == feedback.LabelIdle }, time.Second, time.Millisecond)
}

// ============================================================================
// Numeric bounds
// ============================================================================

func TestAPI_HugePricesCountAsZero(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []map[string]any{
		{"id": "p8", "price": 1e300},
		{"id": "p9", "price": "1e17"},
		tomato(),
	} {
		rec := env.do(t, http.MethodPost, "/api/v1/cart/items", body)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	got := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart", nil))
	require.Len(t, got.Data.Items, 3)
	assert.Equal(t, 0.0, got.Data.Items[0].Price)
	assert.Equal(t, 0.0, got.Data.Items[1].Price)
	assert.InDelta(t, 2.5, got.Data.Total, 1e-9)
	assert.Equal(t, "2,50€", got.Data.TotalFormatted)
}

func TestAPI_ChangeQuantityDeltaBounds(t *testing.T) {
	tests := []struct {
		name   string
		delta  int
		status int
		want   int
	}{
		{"max int", math.MaxInt, http.StatusBadRequest, 1},
		{"min int", math.MinInt, http.StatusBadRequest, 1},
		{"above bound", 10000, http.StatusBadRequest, 1},
		{"below bound", -10000, http.StatusBadRequest, 1},
		{"at bound caps", 9999, http.StatusOK, service.MaxQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.do(t, http.MethodPost, "/api/v1/cart/items", tomato())

			rec := env.do(t, http.MethodPatch, "/api/v1/cart/items/p1", map[string]any{"delta": tt.delta})

			assert.Equal(t, tt.status, rec.Code)
			got := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart", nil))
			require.Len(t, got.Data.Items, 1)
			assert.Equal(t, tt.want, got.Data.Items[0].Quantity)
		})
	}
}

func TestAPI_RepeatedAddsStayCapped(t *testing.T) {
	env := newTestEnv(t)
	item := map[string]any{"id": "p1", "price": 1, "quantity": service.MaxQuantity}

	env.do(t, http.MethodPost, "/api/v1/cart/items", item)
	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", item)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "9999", rec.Header().Get(CartCountHeader))

	item["quantity"] = service.MaxQuantity + 1
	rec = env.do(t, http.MethodPost, "/api/v1/cart/items", item)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddItemForm_QuantityBounds(t *testing.T) {
	for _, q := range []string{"99999999999999999999", "1000000", "10000", "-1", "beaucoup"} {
		t.Run(q, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.form(t, "/cart/items", url.Values{"id": {"p1"}, "price": {"1"}, "quantity": {q}}, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, env.kv.Len())
		})
	}
}

func TestAddItemForm_QuantityWithinBounds(t *testing.T) {
	env := newTestEnv(t)

	rec := env.form(t, "/cart/items", url.Values{"id": {"p1"}, "price": {"1"}, "quantity": {"9999"}}, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	rec = env.form(t, "/cart/items", url.Values{"id": {"p1"}, "price": {"1"}, "quantity": {"5"}}, "")

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "9999", rec.Header().Get(CartCountHeader))
}

// ============================================================================
// Live rendering
// ============================================================================

func TestAPI_MutationsReturnRenderedRows(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cart/items", tomato())
	added := decodeCart(t, rec)
	assert.Contains(t, added.Data.RowsHTML, `class="qty-increase" data-id="p1"`)
	assert.Contains(t, added.Data.RowsHTML, `name="quantity"`)
	assert.Len(t, added.Data.Bindings, 4)

	got := decodeCart(t, env.do(t, http.MethodGet, "/api/v1/cart", nil))
	assert.Empty(t, got.Data.RowsHTML)

	unknown := decodeCart(t, env.do(t, http.MethodPatch, "/api/v1/cart/items/nope", map[string]any{"delta": 1}))
	assert.Empty(t, unknown.Data.RowsHTML)

	removed := decodeCart(t, env.do(t, http.MethodDelete, "/api/v1/cart/items/p1", nil))
	assert.Equal(t, "<p>Votre panier est vide.</p>", removed.Data.RowsHTML)
	assert.Empty(t, removed.Data.Bindings)
}

func TestForms_RedirectCarriesCount(t *testing.T) {
	env := newTestEnv(t)

	rec := env.form(t, "/cart/items", url.Values{"id": {"p1"}, "price": {"2.5"}}, "")
	assert.Equal(t, "1", rec.Header().Get(CartCountHeader))

	rec = env.form(t, "/cart/items/p1/increase", nil, "")
	assert.Equal(t, "2", rec.Header().Get(CartCountHeader))

	rec = env.form(t, "/cart/items/nope/increase", nil, "")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, rec.Header().Get(CartCountHeader))
}

func TestRemove_CancelsAddedFeedback(t *testing.T) {
	tests := []struct {
		name   string
		remove func(t *testing.T, env *testEnv)
	}{
		{"form", func(t *testing.T, env *testEnv) { env.form(t, "/cart/items/p1/remove", nil, "") }},
		{"api", func(t *testing.T, env *testEnv) { env.do(t, http.MethodDelete, "/api/v1/cart/items/p1", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			key := feedback.Key(env.cookie.Value, "p1")
			env.form(t, "/cart/items", url.Values{"id": {"p1"}}, "")
			require.True(t, env.flasher.Active(key))

			tt.remove(t, env)

			assert.False(t, env.flasher.Active(key))
			assert.Equal(t, feedback.LabelIdle, env.flasher.Label(key))
		})
	}
}

// ============================================================================
// Health
// ============================================================================

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Empty(t, rec.Result().Cookies(), path)
	}
}

func TestBackTo(t *testing.T) {
	tests := []struct {
		referer string
		want    string
	}{
		{"", "/cart"},
		{"/produits", "/produits"},
		{"http://example.com/a?b=c", "/a?b=c"},
		{"http://other.example/a", "/cart"},
		{"http://example.com//evil.example", "/cart"},
		{"javascript:alert(1)", "/cart"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/cart/items", nil)
		if tt.referer != "" {
			req.Header.Set("Referer", tt.referer)
		}
		assert.Equal(t, tt.want, backTo(req), tt.referer)
	}
}
