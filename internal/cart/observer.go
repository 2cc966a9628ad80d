package cart

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/messaging"
)

// ChangeEvent is delivered to observers after every mutation that changed the cart.
type ChangeEvent struct {
	Key       string
	Items     []entity.CartLineItem
	ItemCount int
}

// Observer receives cart change notifications.
type Observer interface {
	CartChanged(event ChangeEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(event ChangeEvent)

func (f ObserverFunc) CartChanged(event ChangeEvent) { f(event) }

type subscription struct {
	id int
	o  Observer
}

type observers struct {
	obsMu sync.RWMutex
	subs  []subscription
	seq   int
}

// Subscribe registers o and returns a function that unregisters it.
// Observers run synchronously in subscription order, outside the store lock,
// and may read the store.
func (s *observers) Subscribe(o Observer) (unsubscribe func()) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.seq
	s.seq++
	s.subs = append(s.subs, subscription{id: id, o: o})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			defer s.obsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *observers) notify(event ChangeEvent) {
	s.obsMu.RLock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.obsMu.RUnlock()

	for _, sub := range subs {
		sub.o.CartChanged(event)
	}
}

// PublishingObserver forwards change events to the cart.changed topic, keyed
// by cartID. Publish failures are logged.
func PublishingObserver(pub messaging.Publisher, cartID string, timeout time.Duration) Observer {
	return ObserverFunc(func(event ChangeEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		err := pub.PublishEvent(ctx, messaging.TopicCartChanged, cartID, entity.CartChanged{
			CartID:    cartID,
			Items:     event.Items,
			ItemCount: event.ItemCount,
		})
		if err != nil {
			slog.Warn("Failed to publish cart change", "cart_id", cartID, "err", err)
		}
	})
}
