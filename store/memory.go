// Package store provides an in-memory implementation of the document and
// chat repositories, used when no DATABASE_URL is configured and in tests.
package store

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"naskahsync/internal/document/model"
	"naskahsync/pkg/apperr"
)

// Memory keeps documents indexed by id, by owner and by shared email so that
// listing a user's documents never scans the whole collection.
type Memory struct {
	mu      sync.RWMutex
	docs    map[string]*model.Document
	byOwner map[string]map[string]struct{}
	byEmail map[string]map[string]struct{}
	chats   map[string][]model.ChatMessage
	seq     int64
}

func NewMemory() *Memory {
	return &Memory{
		docs:    make(map[string]*model.Document),
		byOwner: make(map[string]map[string]struct{}),
		byEmail: make(map[string]map[string]struct{}),
		chats:   make(map[string][]model.ChatMessage),
	}
}

func (m *Memory) Create(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[doc.ID]; exists {
		return apperr.ErrValidation
	}
	stored := doc.Clone()
	stored.SharedWith = model.NormalizeShares(stored.SharedWith)
	m.docs[doc.ID] = stored
	index(m.byOwner, doc.Owner, doc.ID)
	for _, email := range stored.SharedWith {
		index(m.byEmail, email, doc.ID)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *Memory) UpdateContent(_ context.Context, id string, content json.RawMessage, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	doc.Content = slices.Clone(content)
	doc.LastModified = at
	return nil
}

func (m *Memory) AddShare(_ context.Context, id, email string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if doc.IsSharedWith(email) {
		return nil
	}
	doc.SharedWith = doc.WithShare(email)
	doc.LastModified = at
	index(m.byEmail, model.NormalizeEmail(email), id)
	return nil
}

func (m *Memory) UpdateName(_ context.Context, id, name string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return apperr.ErrNotFound
	}
	doc.Name = name
	doc.LastModified = at
	return nil
}

func (m *Memory) ListForUser(_ context.Context, userID, email string) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make(map[string]struct{})
	for id := range m.byOwner[userID] {
		ids[id] = struct{}{}
	}
	if email = model.NormalizeEmail(email); email != "" {
		for id := range m.byEmail[email] {
			ids[id] = struct{}{}
		}
	}

	docs := make([]model.Document, 0, len(ids))
	for id := range ids {
		docs = append(docs, *m.docs[id].Clone())
	}
	slices.SortFunc(docs, func(a, b model.Document) int {
		return b.LastModified.Compare(a.LastModified)
	})
	return docs, nil
}

func (m *Memory) AppendMessage(_ context.Context, msg *model.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[msg.DocumentID]; !ok {
		return apperr.ErrNotFound
	}
	m.seq++
	msg.Seq = m.seq
	m.chats[msg.DocumentID] = append(m.chats[msg.DocumentID], *msg)
	return nil
}

func (m *Memory) History(_ context.Context, docID string) ([]model.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Clone(m.chats[docID])
	if out == nil {
		out = []model.ChatMessage{}
	}
	model.SortMessages(out)
	return out, nil
}

func index(idx map[string]map[string]struct{}, key, id string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[id] = struct{}{}
}
