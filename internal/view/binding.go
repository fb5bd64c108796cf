package view

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/Frida144/site-segnorito/internal/domain"
	apperrors "github.com/Frida144/site-segnorito/pkg/errors"
)

// Action is the cart operation a control triggers.
type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
	ActionRemove   Action = "remove"
	ActionSet      Action = "set"
)

// Control classes generated per row.
const (
	ClassIncrease = "qty-increase"
	ClassDecrease = "qty-decrease"
	ClassRemove   = "remove-item"
	ClassQuantity = "qty-value"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionIncrease, ActionDecrease, ActionRemove, ActionSet:
		return a, nil
	}
	return "", apperrors.InvalidInput("unknown cart action: " + s)
}

// Binding ties a rendered control to the cart operation it triggers. The id
// is captured when the row is rendered.
type Binding struct {
	Class  string `json:"class"`
	ID     string `json:"id"`
	Event  string `json:"event"`
	Action Action `json:"action"`
}

// ActionPath builds the form endpoint of an action on an item.
func ActionPath(id, action string) string {
	return "/cart/items/" + url.PathEscape(id) + "/" + action
}

func rowBindings(id string) []Binding {
	return []Binding{
		{Class: ClassDecrease, ID: id, Event: "click", Action: ActionDecrease},
		{Class: ClassQuantity, ID: id, Event: "change", Action: ActionSet},
		{Class: ClassIncrease, ID: id, Event: "click", Action: ActionIncrease},
		{Class: ClassRemove, ID: id, Event: "click", Action: ActionRemove},
	}
}

// Mutator is the subset of the cart store a binding dispatches to.
type Mutator interface {
	ChangeQuantity(ctx context.Context, id string, delta int) (domain.Cart, error)
	SetQuantity(ctx context.Context, id string, quantity float64) (domain.Cart, error)
	Remove(ctx context.Context, id string) (domain.Cart, error)
}

// Dispatch runs the operation bound to b. value is only read by ActionSet;
// anything that is not a number counts as 1.
func Dispatch(ctx context.Context, m Mutator, b Binding, value string) (domain.Cart, error) {
	switch b.Action {
	case ActionIncrease:
		return m.ChangeQuantity(ctx, b.ID, 1)
	case ActionDecrease:
		return m.ChangeQuantity(ctx, b.ID, -1)
	case ActionRemove:
		return m.Remove(ctx, b.ID)
	case ActionSet:
		return m.SetQuantity(ctx, b.ID, ParseQuantity(value))
	}
	return nil, apperrors.InvalidInput("unknown cart action: " + string(b.Action))
}

// ParseQuantity reads a manually entered quantity. Unparsable input yields
// NaN, which the store coerces to 1.
func ParseQuantity(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.Replace(s, ",", ".", 1)), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
