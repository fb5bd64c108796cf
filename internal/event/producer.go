package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Frida144/site-segnorito/internal/domain"
	"github.com/Frida144/site-segnorito/internal/service"
	pkgkafka "github.com/Frida144/site-segnorito/pkg/kafka"
	"github.com/Frida144/site-segnorito/pkg/logger"
)

// Kafka topic constants for cart events.
const (
	TopicCartUpdated = "senorito.cart.updated"
	TopicCartCleared = "senorito.cart.cleared"
)

// AggregateTypeCart is the aggregate type of every cart event.
const AggregateTypeCart = "cart"

// SourceCartService identifies events originating from this service.
const SourceCartService = "senorito-cart"

var origin = pkgkafka.Origin{Source: SourceCartService, AggregateType: AggregateTypeCart}

// CartUpdatedData is the payload of a cart.updated event.
type CartUpdatedData struct {
	CartKey     string         `json:"cart_key"`
	Operation   string         `json:"operation"`
	Items       []CartItemData `json:"items"`
	ItemCount   int            `json:"item_count"`
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
}

// CartItemData is the item payload within cart events. Price is in cents.
type CartItemData struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// CartClearedData is the payload of a cart.cleared event.
type CartClearedData struct {
	CartKey string `json:"cart_key"`
}

// Publisher sends an event to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes cart events. It is a service.Listener: a failed publish
// is logged and never fails the cart mutation.
type Producer struct {
	publisher Publisher
	currency  string
	logger    *slog.Logger
}

// NewProducer creates an event producer.
func NewProducer(publisher Publisher, currency string, logger *slog.Logger) *Producer {
	return &Producer{
		publisher: publisher,
		currency:  currency,
		logger:    logger,
	}
}

// CartChanged implements service.Listener.
func (p *Producer) CartChanged(ctx context.Context, change service.Change) {
	var err error
	if change.Operation == service.OpClear {
		err = p.PublishCartCleared(ctx, change.Key)
	} else {
		err = p.PublishCartUpdated(ctx, change.Key, change.Operation, change.Cart)
	}
	if err != nil {
		p.logger.WarnContext(ctx, "cart event not published",
			slog.String("cart_key", change.Key),
			slog.String("operation", string(change.Operation)),
			slog.String("error", err.Error()),
		)
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, key string, op service.Operation, cart domain.Cart) error {
	items := make([]CartItemData, len(cart))
	for i, item := range cart {
		items[i] = CartItemData{
			ID:       item.ID,
			Name:     item.Name,
			Price:    item.Price.Cents(),
			Quantity: item.Quantity,
		}
	}

	data := CartUpdatedData{
		CartKey:     key,
		Operation:   string(op),
		Items:       items,
		ItemCount:   cart.ItemCount(),
		TotalAmount: cart.TotalCents(),
		Currency:    p.currency,
	}

	if err := p.publish(ctx, TopicCartUpdated, key, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("cart_key", key),
		slog.Int("item_count", data.ItemCount),
	)
	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, key string) error {
	if err := p.publish(ctx, TopicCartCleared, key, CartClearedData{CartKey: key}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("cart_key", key),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, key string, data any) error {
	event, err := origin.NewEvent(topic, key, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.publisher.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}
