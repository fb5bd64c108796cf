package view

import "sync"

// Element ids the cart reflects into.
const (
	CartItemsID = "cart-items"
	CartTotalID = "cart-total"
	CartCountID = "cart-count"
)

// Document is the page the cart is rendered into. Lookups of ids the page
// does not carry report false and the caller skips the write.
type Document interface {
	Element(id string) (Element, bool)
}

// Element is a writable node of a Document.
type Element interface {
	SetText(text string)
	SetHTML(html string)
}

// Page is an in-memory Document holding the content of a fixed set of ids.
type Page struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

type node struct {
	page *Page
	text string
	html string
}

// NewPage creates a page carrying the given element ids.
func NewPage(ids ...string) *Page {
	p := &Page{nodes: make(map[string]*node, len(ids))}
	for _, id := range ids {
		p.nodes[id] = &node{page: p}
	}
	return p
}

// NewCartPage creates a page with the cart container, the total and the
// count badge.
func NewCartPage() *Page {
	return NewPage(CartItemsID, CartTotalID, CartCountID)
}

func (p *Page) Element(id string) (Element, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n, ok := p.nodes[id]
	return n, ok
}

// Has reports whether the page carries id.
func (p *Page) Has(id string) bool {
	_, ok := p.Element(id)
	return ok
}

// Text returns the text content of id.
func (p *Page) Text(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n, ok := p.nodes[id]; ok {
		return n.text
	}
	return ""
}

// HTML returns the markup content of id.
func (p *Page) HTML(id string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if n, ok := p.nodes[id]; ok {
		return n.html
	}
	return ""
}

func (n *node) SetText(text string) {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()
	n.text = text
	n.html = ""
}

func (n *node) SetHTML(html string) {
	n.page.mu.Lock()
	defer n.page.mu.Unlock()
	n.html = html
	n.text = ""
}
