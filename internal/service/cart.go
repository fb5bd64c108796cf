package service

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Frida144/site-segnorito/internal/domain"
	"github.com/Frida144/site-segnorito/internal/repository"
	apperrors "github.com/Frida144/site-segnorito/pkg/errors"
	"github.com/Frida144/site-segnorito/pkg/tracing"
)

// MaxQuantity bounds the quantity of one line item.
const MaxQuantity = domain.MaxQuantity

const tracerName = "github.com/Frida144/site-segnorito/internal/service"

// AddItemInput holds the product attributes of an add-to-cart trigger.
type AddItemInput struct {
	ID       string
	Name     string
	Price    domain.Price
	Image    string
	Quantity int // zero or less means 1
}

// CartStore owns one persisted cart. It keeps no in-memory copy: every
// operation reads the stored cart, mutates it and writes it back, so the
// last write wins.
type CartStore struct {
	kv        repository.KeyValueStore
	key       string
	listeners []Listener
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewCartStore creates a store bound to key.
func NewCartStore(kv repository.KeyValueStore, key string, logger *slog.Logger, listeners ...Listener) *CartStore {
	return &CartStore{
		kv:        kv,
		key:       key,
		listeners: listeners,
		logger:    logger,
		tracer:    tracing.Tracer(tracerName),
	}
}

// Key returns the storage key the cart lives under.
func (s *CartStore) Key() string { return s.key }

// Load returns the stored cart. A missing key, an unreachable backend or a
// malformed value all yield an empty cart.
func (s *CartStore) Load(ctx context.Context) domain.Cart {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Cart{}
		}
		cartLoadFallbacksTotal.WithLabelValues("storage").Inc()
		s.logger.WarnContext(ctx, "cart storage read failed, using empty cart",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return domain.Cart{}
	}

	cart, err := domain.Decode([]byte(raw))
	if err != nil {
		cartLoadFallbacksTotal.WithLabelValues("malformed").Inc()
		s.logger.DebugContext(ctx, "stored cart is malformed, using empty cart",
			slog.String("key", s.key),
			slog.String("error", err.Error()),
		)
		return domain.Cart{}
	}
	return cart
}

// Persist writes the whole cart and notifies listeners.
func (s *CartStore) Persist(ctx context.Context, cart domain.Cart) error {
	return s.persist(ctx, OpPersist, cart)
}

// persist marks the caller's span as failed when the write does not land.
func (s *CartStore) persist(ctx context.Context, op Operation, cart domain.Cart) error {
	data, err := domain.Encode(cart)
	if err != nil {
		tracing.Fail(trace.SpanFromContext(ctx), err)
		return apperrors.Internal(err)
	}
	if err := s.kv.Set(ctx, s.key, string(data)); err != nil {
		tracing.Fail(trace.SpanFromContext(ctx), err)
		return apperrors.Unavailable("cart storage", err)
	}

	cartMutationsTotal.WithLabelValues(string(op)).Inc()
	s.notify(ctx, Change{Key: s.key, Operation: op, Cart: cart})
	return nil
}

func (s *CartStore) notify(ctx context.Context, change Change) {
	for _, l := range s.listeners {
		l.CartChanged(ctx, change)
	}
}

// Add merges the item into the cart: an existing id has its quantity raised
// by the incoming quantity, a new id is appended. Quantities never exceed
// MaxQuantity.
func (s *CartStore) Add(ctx context.Context, in AddItemInput) (domain.Cart, error) {
	if in.ID == "" {
		return nil, apperrors.InvalidInput("id is required")
	}
	qty := min(max(in.Quantity, 1), MaxQuantity)

	ctx, span := s.tracer.Start(ctx, "CartStore.Add", trace.WithAttributes(
		attribute.String("cart.item_id", in.ID),
		attribute.Int("cart.quantity", qty),
	))
	defer span.End()

	cart := s.Load(ctx)
	if idx := cart.FindIndex(in.ID); idx > -1 {
		cart[idx].Quantity = domain.AddQuantity(cart[idx].Quantity, qty)
	} else {
		cart = append(cart, domain.LineItem{
			ID:       in.ID,
			Name:     in.Name,
			Price:    in.Price.Sanitize(),
			Image:    in.Image,
			Quantity: qty,
		})
	}

	if err := s.persist(ctx, OpAdd, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("key", s.key),
		slog.String("item_id", in.ID),
		slog.Int("quantity", qty),
	)
	return cart, nil
}

// ChangeQuantity adds delta to the item's quantity, capped at MaxQuantity. A
// result of zero or less removes the row. Unknown ids leave the cart
// untouched and unwritten.
func (s *CartStore) ChangeQuantity(ctx context.Context, id string, delta int) (domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartStore.ChangeQuantity", trace.WithAttributes(
		attribute.String("cart.item_id", id),
		attribute.Int("cart.delta", delta),
	))
	defer span.End()

	cart := s.Load(ctx)
	idx := cart.FindIndex(id)
	if idx == -1 {
		return cart, nil
	}

	qty := domain.AddQuantity(cart[idx].Quantity, delta)
	if qty == 0 {
		cart = append(cart[:idx:idx], cart[idx+1:]...)
	} else {
		cart[idx].Quantity = qty
	}

	if err := s.persist(ctx, OpChangeQuantity, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity changed",
		slog.String("key", s.key),
		slog.String("item_id", id),
		slog.Int("delta", delta),
		slog.Int("quantity", qty),
	)
	return cart, nil
}

// SetQuantity overwrites the item's quantity with a manually entered value,
// clamped to [1, MaxQuantity]. NaN and infinities count as 1.
func (s *CartStore) SetQuantity(ctx context.Context, id string, quantity float64) (domain.Cart, error) {
	qty := ClampQuantity(quantity)

	ctx, span := s.tracer.Start(ctx, "CartStore.SetQuantity", trace.WithAttributes(
		attribute.String("cart.item_id", id),
		attribute.Int("cart.quantity", qty),
	))
	defer span.End()

	cart := s.Load(ctx)
	idx := cart.FindIndex(id)
	if idx == -1 {
		return cart, nil
	}
	cart[idx].Quantity = qty

	if err := s.persist(ctx, OpSetQuantity, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "cart item quantity set",
		slog.String("key", s.key),
		slog.String("item_id", id),
		slog.Int("quantity", qty),
	)
	return cart, nil
}

// Remove drops the item with the given id and writes the cart back.
func (s *CartStore) Remove(ctx context.Context, id string) (domain.Cart, error) {
	ctx, span := s.tracer.Start(ctx, "CartStore.Remove", trace.WithAttributes(
		attribute.String("cart.item_id", id),
	))
	defer span.End()

	cart := s.Load(ctx).Without(id)
	if err := s.persist(ctx, OpRemove, cart); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("key", s.key),
		slog.String("item_id", id),
	)
	return cart, nil
}

// Clear deletes the stored cart.
func (s *CartStore) Clear(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "CartStore.Clear")
	defer span.End()

	if err := s.kv.Delete(ctx, s.key); err != nil {
		tracing.Fail(span, err)
		return apperrors.Unavailable("cart storage", err)
	}

	cartMutationsTotal.WithLabelValues(string(OpClear)).Inc()
	s.notify(ctx, Change{Key: s.key, Operation: OpClear, Cart: domain.Cart{}})

	s.logger.InfoContext(ctx, "cart cleared", slog.String("key", s.key))
	return nil
}

// Total returns Σ price × quantity of the stored cart.
func (s *CartStore) Total(ctx context.Context) float64 {
	return s.Load(ctx).Total()
}

// Count returns Σ quantity of the stored cart, the badge figure.
func (s *CartStore) Count(ctx context.Context) int {
	return s.Load(ctx).ItemCount()
}

// ClampQuantity coerces a manually entered quantity to a valid one.
func ClampQuantity(q float64) int {
	if math.IsNaN(q) || math.IsInf(q, 0) || q < 1 {
		return 1
	}
	if q > MaxQuantity {
		return MaxQuantity
	}
	return int(q)
}
