package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/egannguyen/storefront/internal/entity"
	"github.com/egannguyen/storefront/internal/repository"
)

type fakeProducts map[string]entity.Product

func (f fakeProducts) FindAll(ctx context.Context) ([]entity.Product, error) {
	var out []entity.Product
	for _, p := range f {
		out = append(out, p)
	}
	return out, nil
}

func (f fakeProducts) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	p, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, repository.ErrNotFound)
	}
	return &p, nil
}

func (f fakeProducts) Seed(ctx context.Context, products []entity.Product) error {
	for _, p := range products {
		f[p.ID] = p
	}
	return nil
}

type fakeEventStore struct {
	mu      sync.Mutex
	streams map[string][]entity.EventStoreRecord
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{streams: make(map[string][]entity.EventStoreRecord)}
}

func (s *fakeEventStore) SaveEvents(ctx context.Context, streamID string, streamType string, expectedVersion int, events []entity.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[streamID])
	if expectedVersion >= 0 && expectedVersion != current {
		return fmt.Errorf("concurrency exception on %s: expected version %d, got %d", streamID, expectedVersion, current)
	}
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		current++
		s.streams[streamID] = append(s.streams[streamID], entity.EventStoreRecord{
			ID:         fmt.Sprintf("%s-%d", streamID, current),
			StreamID:   streamID,
			StreamType: streamType,
			Version:    current,
			EventType:  e.EventType(),
			Payload:    payload,
			CreatedAt:  time.Now(),
		})
	}
	return nil
}

func (s *fakeEventStore) LoadEvents(ctx context.Context, streamID string) ([]entity.EventStoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.EventStoreRecord(nil), s.streams[streamID]...), nil
}

func (s *fakeEventStore) types(streamID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, rec := range s.streams[streamID] {
		out = append(out, rec.EventType)
	}
	return out
}

type fakeOrders struct {
	mu     sync.Mutex
	events []entity.Event
}

func (f *fakeOrders) UpdateOrderProjection(ctx context.Context, event entity.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOrders) FindRecent(ctx context.Context, limit int) ([]entity.Order, error) {
	return nil, nil
}

type published struct {
	topic string
	key   string
	event any
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published

	onPublish func(topic string) // runs after the message is recorded
}

func (p *recordingPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	p.msgs = append(p.msgs, published{topic: topic, key: key, event: event})
	hook := p.onPublish
	p.mu.Unlock()

	if hook != nil {
		hook(topic)
	}
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		out = append(out, m.topic)
	}
	return out
}

func catalog() fakeProducts {
	img := func(name string) string {
		return "https://res.cloudinary.com/demo/image/upload/v1/joyeria/" + name + ".jpg"
	}
	return fakeProducts{
		"collar-1": {ID: "collar-1", Title: "Collar Luna", Price: decimal.NewFromInt(1000), Stock: 5, Image: img("collar-1"), Type: entity.ProductIndividual},
		"dije-1":   {ID: "dije-1", Title: "Dije Sol", Price: decimal.NewFromInt(2000), Stock: 3, Image: img("dije-1"), Type: entity.ProductIndividual},
		"arete-1":  {ID: "arete-1", Title: "Aretes Perla", Price: decimal.NewFromInt(1500), Stock: 8, Image: img("arete-1"), Type: entity.ProductIndividual},
		"anillo-1": {ID: "anillo-1", Title: "Anillo Plata", Price: decimal.NewFromInt(2500), Stock: 2, Image: img("anillo-1"), Type: entity.ProductIndividual},
		"set-luna": {
			ID: "set-luna", Title: "Set Luna", Price: decimal.NewFromInt(3000), Stock: 4, Image: img("set-luna"),
			Type: entity.ProductCombo, ComboItems: &entity.ComboItems{Collar: true, Dije: true},
		},
	}
}
