package view

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"sync"

	"github.com/Frida144/site-segnorito/internal/domain"
	"github.com/Frida144/site-segnorito/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// ItemModel is one rendered line item.
type ItemModel struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Price              float64 `json:"price"`
	PriceFormatted     string  `json:"price_formatted"`
	Image              string  `json:"image"`
	Quantity           int     `json:"quantity"`
	LineTotal          float64 `json:"line_total"`
	LineTotalFormatted string  `json:"line_total_formatted"`
}

// CartModel is the view model of a whole cart.
type CartModel struct {
	Items          []ItemModel `json:"items"`
	Count          int         `json:"count"`
	Total          float64     `json:"total"`
	TotalFormatted string      `json:"total_formatted"`
	Bindings       []Binding   `json:"bindings"`
	RowsHTML       string      `json:"rows_html,omitempty"`
}

// Renderer reflects carts into documents.
type Renderer struct {
	prices *PriceFormatter
	tmpl   *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer(prices *PriceFormatter) (*Renderer, error) {
	tmpl, err := template.New("cart").
		Funcs(template.FuncMap{"actionPath": ActionPath}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{prices: prices, tmpl: tmpl}, nil
}

// Model builds the view model of cart.
func (r *Renderer) Model(cart domain.Cart) CartModel {
	items := make([]ItemModel, 0, len(cart))
	bindings := make([]Binding, 0, 4*len(cart))
	for _, item := range cart {
		line := item.LineTotalCents()
		items = append(items, ItemModel{
			ID:                 item.ID,
			Name:               item.Name,
			Price:              float64(item.Price.Cents()) / 100,
			PriceFormatted:     r.prices.FormatCents(item.Price.Cents()),
			Image:              item.Image,
			Quantity:           item.Quantity,
			LineTotal:          float64(line) / 100,
			LineTotalFormatted: r.prices.FormatCents(line),
		})
		bindings = append(bindings, rowBindings(item.ID)...)
	}
	return CartModel{
		Items:          items,
		Count:          cart.ItemCount(),
		Total:          cart.Total(),
		TotalFormatted: r.prices.FormatCents(cart.TotalCents()),
		Bindings:       bindings,
	}
}

// RenderCartPage fully replaces the cart container with one row per item and
// refreshes the total and the badge. It returns the control bindings of the
// new rows. Documents without a cart container are left untouched.
func (r *Renderer) RenderCartPage(doc Document, cart domain.Cart) []Binding {
	container, ok := doc.Element(CartItemsID)
	if !ok {
		return nil
	}

	model := r.Model(cart)
	name := "rows"
	if len(cart) == 0 {
		name = "empty"
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, model.Items); err != nil {
		// Templates are static and the data is plain strings; an execution
		// error here is a programming error.
		panic(fmt.Sprintf("render cart rows: %v", err))
	}
	container.SetHTML(buf.String())

	r.UpdateTotals(doc, cart)
	return model.Bindings
}

// UpdateTotals writes the formatted total and the badge count.
func (r *Renderer) UpdateTotals(doc Document, cart domain.Cart) {
	if el, ok := doc.Element(CartTotalID); ok {
		el.SetText(r.prices.FormatCents(cart.TotalCents()))
	}
	UpdateCount(doc, cart.ItemCount())
}

// UpdateCount writes the badge count, if the document has a badge.
func UpdateCount(doc Document, count int) {
	if el, ok := doc.Element(CartCountID); ok {
		el.SetText(strconv.Itoa(count))
	}
}

type layoutData struct {
	Title string
	Count string
	Items template.HTML
	Total string
}

// WritePage writes the full HTML cart page built from a rendered Page.
func (r *Renderer) WritePage(w io.Writer, title string, page *Page) error {
	data := layoutData{
		Title: title,
		Count: page.Text(CartCountID),
		Items: template.HTML(page.HTML(CartItemsID)), // produced by the rows template
		Total: page.Text(CartTotalID),
	}
	if err := r.tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		return fmt.Errorf("render cart page: %w", err)
	}
	return nil
}

// Badge returns a listener that keeps the document's count badge in sync.
func Badge(doc Document) service.Listener {
	return service.ListenerFunc(func(_ context.Context, change service.Change) {
		UpdateCount(doc, change.Cart.ItemCount())
	})
}

// Refresher re-renders a document after every cart write and keeps the
// bindings of the latest render.
type Refresher struct {
	doc      Document
	renderer *Renderer

	mu       sync.Mutex
	bindings []Binding
}

// NewRefresher creates a Refresher for doc.
func NewRefresher(doc Document, renderer *Renderer) *Refresher {
	return &Refresher{doc: doc, renderer: renderer}
}

func (r *Refresher) CartChanged(_ context.Context, change service.Change) {
	b := r.renderer.RenderCartPage(r.doc, change.Cart)
	r.mu.Lock()
	r.bindings = b
	r.mu.Unlock()
}

// Bindings returns the bindings of the latest render.
func (r *Refresher) Bindings() []Binding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindings
}
