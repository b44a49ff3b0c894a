package cache

import (
	"context"
	"log"
	"sync"

	"squizy/internal/model"
)

// MemoryStore keeps room documents in process. Documents are held field-encoded,
// the same layout the Redis hash uses, so readers never share memory with writers.
type MemoryStore struct {
	mu          sync.RWMutex
	docs        map[string]map[string]string
	subscribers map[string]map[*feed]struct{}
}

var _ SessionCache = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:        make(map[string]map[string]string),
		subscribers: make(map[string]map[*feed]struct{}),
	}
}

func (s *MemoryStore) Set(ctx context.Context, code string, doc model.Update) error {
	fields, err := doc.Fields()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[code] = fields
	s.publish(code)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, code string, u model.Update) error {
	fields, err := u.Fields()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[code]
	if !ok {
		doc = make(map[string]string, len(fields))
		s.docs[code] = doc
	}
	for k, v := range fields {
		doc[k] = v
	}
	s.publish(code)
	return nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, code string) (model.Update, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.decode(code)
	return doc, ok, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, code string) (<-chan model.Update, error) {
	f := newFeed()
	out := make(chan model.Update)

	s.mu.Lock()
	if s.subscribers[code] == nil {
		s.subscribers[code] = make(map[*feed]struct{})
	}
	s.subscribers[code][f] = struct{}{}
	if doc, ok := s.decode(code); ok {
		f.push(doc)
	}
	s.mu.Unlock()

	go func() {
		defer s.unsubscribe(code, f)
		f.pump(ctx, out)
	}()
	return out, nil
}

// Delete drops a room document. Subscribers stay attached and see the room again if it is recreated.
func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, code)
	return nil
}

// Subscribers returns the number of live subscriptions for a room
func (s *MemoryStore) Subscribers(code string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers[code])
}

func (s *MemoryStore) unsubscribe(code string, f *feed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscribers[code], f)
	if len(s.subscribers[code]) == 0 {
		delete(s.subscribers, code)
	}
}

// publish must be called with s.mu held
func (s *MemoryStore) publish(code string) {
	subs := s.subscribers[code]
	if len(subs) == 0 {
		return
	}
	doc, ok := s.decode(code)
	if !ok {
		return
	}
	for f := range subs {
		f.push(doc)
	}
}

// decode must be called with s.mu held
func (s *MemoryStore) decode(code string) (model.Update, bool) {
	fields, ok := s.docs[code]
	if !ok {
		return model.Update{}, false
	}
	doc, errs := model.DecodeFields(fields)
	for _, err := range errs {
		log.Printf("[cache] room %s: %v", code, err)
	}
	return doc, true
}
