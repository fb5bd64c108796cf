package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultStorageKey is the key the serialized cart lives under.
const DefaultStorageKey = "senorito_cart_v1"

// Bounds on a single line item. They keep every total within int64 cents.
const (
	MaxPrice    = 1e9
	MaxQuantity = 9999
)

// Price is a non-negative currency amount with two meaningful decimals.
// Invalid values (NaN, infinities, negatives, above MaxPrice) behave as zero
// in arithmetic.
type Price float64

// ParsePrice parses a user or attribute supplied price. Anything that is not a
// finite non-negative number yields zero.
func ParsePrice(s string) Price {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return Price(v).Sanitize()
}

// Sanitize returns the price with invalid values replaced by zero.
func (p Price) Sanitize() Price {
	f := float64(p)
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > MaxPrice {
		return 0
	}
	return p
}

// AddQuantity returns q+delta clamped to [0, MaxQuantity] without
// overflowing, whatever the magnitude of delta.
func AddQuantity(q, delta int) int {
	q = min(max(q, 0), MaxQuantity)
	delta = min(max(delta, -MaxQuantity), MaxQuantity)
	return min(max(q+delta, 0), MaxQuantity)
}

// Cents returns the price rounded to the nearest cent.
func (p Price) Cents() int64 {
	return int64(math.Round(float64(p.Sanitize()) * 100))
}

// UnmarshalJSON accepts numbers, numeric strings and null. Unparsable values
// decode to zero instead of failing the whole cart.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*p = 0
			return nil
		}
		*p = ParsePrice(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		*p = 0
		return nil
	}
	*p = Price(f).Sanitize()
	return nil
}

// LineItem is one product entry in the cart.
type LineItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    Price  `json:"price"`
	Image    string `json:"image"`
	Quantity int    `json:"quantity"`
}

// LineTotalCents returns price * quantity in cents.
func (li LineItem) LineTotalCents() int64 {
	if li.Quantity <= 0 {
		return 0
	}
	return li.Price.Cents() * int64(li.Quantity)
}

// Cart is the ordered sequence of line items, in insertion order.
type Cart []LineItem

// TotalCents sums price * quantity over all items.
func (c Cart) TotalCents() int64 {
	var total int64
	for _, item := range c {
		total += item.LineTotalCents()
	}
	return total
}

// Total returns the cart total in currency units.
func (c Cart) Total() float64 {
	return float64(c.TotalCents()) / 100
}

// ItemCount sums quantities; this is what the navigation badge shows.
func (c Cart) ItemCount() int {
	var count int
	for _, item := range c {
		if item.Quantity > 0 {
			count += item.Quantity
		}
	}
	return count
}

// FindIndex returns the index of the item with the given id, or -1.
func (c Cart) FindIndex(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// Without returns a copy of the cart with every item matching id removed.
func (c Cart) Without(id string) Cart {
	out := make(Cart, 0, len(c))
	for _, item := range c {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

// Normalize enforces the cart invariants on data read from storage: rows
// without an id or with quantity below one are dropped, quantities above
// MaxQuantity are capped and repeated ids are merged into the first
// occurrence.
func (c Cart) Normalize() Cart {
	out := make(Cart, 0, len(c))
	for _, item := range c {
		if item.ID == "" || item.Quantity < 1 {
			continue
		}
		item.Price = item.Price.Sanitize()
		item.Quantity = min(item.Quantity, MaxQuantity)
		if idx := out.FindIndex(item.ID); idx > -1 {
			out[idx].Quantity = AddQuantity(out[idx].Quantity, item.Quantity)
			continue
		}
		out = append(out, item)
	}
	return out
}

// Decode parses the persisted JSON form. Callers treat any error as an
// empty cart.
func Decode(data []byte) (Cart, error) {
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, err
	}
	return c.Normalize(), nil
}

// Encode serializes the cart as a JSON array. A nil cart encodes as "[]".
func Encode(c Cart) ([]byte, error) {
	if c == nil {
		c = Cart{}
	}
	return json.Marshal(c)
}
