package db

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps documents in process. It backs database-less runs and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document), now: time.Now}
}

func (m *MemoryStore) Put(ctx context.Context, key string, body []byte, metadata map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[key] = Document{
		Key:       key,
		Body:      append([]byte(nil), body...),
		Metadata:  meta,
		UpdatedAt: m.now(),
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[key]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (m *MemoryStore) Query(ctx context.Context, filter map[string]string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Document
	for _, doc := range m.docs {
		if matches(doc.Metadata, filter) {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].UpdatedAt.Equal(docs[j].UpdatedAt) {
			return docs[i].UpdatedAt.Before(docs[j].UpdatedAt)
		}
		return docs[i].Key < docs[j].Key
	})
	return docs, nil
}

func matches(meta, filter map[string]string) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}
