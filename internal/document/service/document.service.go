package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"naskahsync/internal/access"
	"naskahsync/internal/document/model"
	"naskahsync/internal/presence"
	"naskahsync/pkg/apperr"
	"naskahsync/pkg/logger"
	"naskahsync/pkg/metrics"
	"naskahsync/socket"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultTitle  = "Untitled Document"
	maxNameLength = 200
)

// DocumentRepo is the authoritative document store.
type DocumentRepo interface {
	Create(ctx context.Context, doc *model.Document) error
	Get(ctx context.Context, id string) (*model.Document, error)
	UpdateContent(ctx context.Context, id string, content json.RawMessage, at time.Time) error
	AddShare(ctx context.Context, id, email string, at time.Time) error
	UpdateName(ctx context.Context, id, name string, at time.Time) error
	ListForUser(ctx context.Context, userID, email string) ([]model.Document, error)
}

// ChatRepo is the append-only chat log.
type ChatRepo interface {
	AppendMessage(ctx context.Context, msg *model.ChatMessage) error
	History(ctx context.Context, docID string) ([]model.ChatMessage, error)
}

type Options struct {
	PresenceTTL     time.Duration
	MaxContentBytes int
	MaxChatBody     int
	CacheSize       int
	Now             func() time.Time
}

func (o *Options) setDefaults() {
	if o.PresenceTTL <= 0 {
		o.PresenceTTL = 5 * time.Second
	}
	if o.MaxContentBytes <= 0 {
		o.MaxContentBytes = 5 << 20
	}
	if o.MaxChatBody <= 0 {
		o.MaxChatBody = 4000
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 1024
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// DocumentService is the realtime synchronization core. Every mutation of a
// document, its chat log, its presence set and its subscriber list runs under
// that document's lock, and the resulting event is published before the lock
// is released, so commit order and delivery order are the same.
type DocumentService struct {
	Repo     DocumentRepo
	Chat     ChatRepo
	Hub      *socket.Hub
	Presence *presence.Tracker

	opts  Options
	locks *docLocks
	clock *monoClock
	// cache holds immutable document copies, replaced on every commit.
	cache *lru.Cache[string, *model.Document]
}

func NewDocumentService(repo DocumentRepo, chat ChatRepo, hub *socket.Hub, tracker *presence.Tracker, opts Options) *DocumentService {
	opts.setDefaults()
	cache, err := lru.New[string, *model.Document](opts.CacheSize)
	if err != nil {
		panic(err) // only on a non-positive size, excluded by setDefaults
	}
	return &DocumentService{
		Repo:     repo,
		Chat:     chat,
		Hub:      hub,
		Presence: tracker,
		opts:     opts,
		locks:    newDocLocks(),
		clock:    &monoClock{now: opts.Now},
		cache:    cache,
	}
}

func (s *DocumentService) now() time.Time {
	return s.opts.Now().UTC()
}

// CreateDocument creates an empty document owned by user.
func (s *DocumentService) CreateDocument(ctx context.Context, user access.User, req model.CreateDocRequest) (*model.Document, error) {
	if user.ID == "" {
		return nil, apperr.ErrDenied
	}
	docType, err := model.ParseDocType(req.Type)
	if err != nil {
		return nil, err
	}
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := &model.Document{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Type:         docType,
		Content:      docType.InitialContent(),
		Owner:        user.ID,
		SharedWith:   []string{},
		CreatedAt:    now,
		LastModified: now,
	}

	wctx, cancel := commitContext(ctx)
	defer cancel()
	if err := s.Repo.Create(wctx, doc); err != nil {
		metrics.Mutations.WithLabelValues("create", "error").Inc()
		return nil, err
	}
	s.cache.Add(doc.ID, doc.Clone())
	metrics.DocumentsCreated.Inc()
	metrics.Mutations.WithLabelValues("create", "ok").Inc()
	logger.Sugar.Infof("User %s created %s document %s", user.ID, doc.Type, doc.ID)
	return doc, nil
}

// GetDocument returns the document if user may read it.
func (s *DocumentService) GetDocument(ctx context.Context, user access.User, id string) (*model.Document, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(user, doc) {
		return nil, apperr.ErrDenied
	}
	return doc, nil
}

// UpdateContent replaces the content wholesale. Last write wins: no
// comparison with the previous value is made.
func (s *DocumentService) UpdateContent(ctx context.Context, user access.User, id string, content json.RawMessage) (*model.Document, error) {
	if err := s.validateContent(content); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanWrite(user, doc) {
		metrics.Mutations.WithLabelValues("content", "denied").Inc()
		return nil, apperr.ErrDenied
	}

	now := s.now()
	wctx, cancel := commitContext(ctx)
	defer cancel()
	if err := s.Repo.UpdateContent(wctx, id, content, now); err != nil {
		metrics.Mutations.WithLabelValues("content", "error").Inc()
		return nil, err
	}

	doc.Content = append(json.RawMessage(nil), content...)
	doc.LastModified = now
	s.commit(doc, user.ID)
	metrics.Mutations.WithLabelValues("content", "ok").Inc()
	return doc, nil
}

// AddShare grants email access. The set only ever grows; sharing with an
// email already present changes nothing and publishes nothing.
func (s *DocumentService) AddShare(ctx context.Context, user access.User, id, email string) (*model.Document, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanWrite(user, doc) {
		metrics.Mutations.WithLabelValues("share", "denied").Inc()
		return nil, apperr.ErrDenied
	}
	if doc.IsSharedWith(email) {
		return doc, nil
	}

	now := s.now()
	wctx, cancel := commitContext(ctx)
	defer cancel()
	if err := s.Repo.AddShare(wctx, id, email, now); err != nil {
		metrics.Mutations.WithLabelValues("share", "error").Inc()
		return nil, err
	}

	doc.SharedWith = doc.WithShare(email)
	doc.LastModified = now
	s.commit(doc, user.ID)
	metrics.Mutations.WithLabelValues("share", "ok").Inc()
	logger.Sugar.Infof("User %s shared doc %s with %s", user.ID, id, email)
	return doc, nil
}

// Rename changes the display name. Only the owner may rename.
func (s *DocumentService) Rename(ctx context.Context, user access.User, id, name string) (*model.Document, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.IsOwner(user, doc) {
		metrics.Mutations.WithLabelValues("rename", "denied").Inc()
		return nil, apperr.ErrDenied
	}

	now := s.now()
	wctx, cancel := commitContext(ctx)
	defer cancel()
	if err := s.Repo.UpdateName(wctx, id, name, now); err != nil {
		metrics.Mutations.WithLabelValues("rename", "error").Inc()
		return nil, err
	}

	doc.Name = name
	doc.LastModified = now
	s.commit(doc, user.ID)
	metrics.Mutations.WithLabelValues("rename", "ok").Inc()
	return doc, nil
}

// ListDocuments returns every document user may read, most recently
// modified first.
func (s *DocumentService) ListDocuments(ctx context.Context, user access.User) ([]model.DocumentSummary, error) {
	docs, err := retryRead(ctx, "documents for "+user.ID, func(ctx context.Context) ([]model.Document, error) {
		return s.Repo.ListForUser(ctx, user.ID, model.NormalizeEmail(user.Email))
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.DocumentSummary, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if !access.CanRead(user, doc) {
			continue
		}
		out = append(out, model.DocumentSummary{
			ID:           doc.ID,
			Name:         doc.Name,
			Type:         doc.Type,
			Owner:        doc.Owner,
			SharedWith:   doc.SharedWith,
			LastModified: doc.LastModified,
			Snippet:      getSnippetFromContent(doc.Type, doc.Content),
			IsOwner:      access.IsOwner(user, doc),
		})
	}
	return out, nil
}

// Export hands content and type to the export collaborator. It is a pure read.
func (s *DocumentService) Export(ctx context.Context, user access.User, id string) (*model.ExportResponse, error) {
	doc, err := s.GetDocument(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return &model.ExportResponse{Name: doc.Name, Type: doc.Type, Content: doc.Content}, nil
}

// Subscribe authorizes user and registers a subscription whose first event
// is a full snapshot: document, active typists and the whole chat history.
func (s *DocumentService) Subscribe(ctx context.Context, user access.User, id string) (*socket.Subscription, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	doc, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(user, doc) {
		return nil, apperr.ErrDenied
	}
	history, err := retryRead(ctx, "chat history of "+id, func(ctx context.Context) ([]model.ChatMessage, error) {
		return s.Chat.History(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	snap := model.Snapshot{
		Document: doc,
		Presence: s.Presence.Snapshot(id),
		Chat:     history,
	}
	return s.Hub.Subscribe(newID(), id, user.ID, snap), nil
}

// load returns a private copy of the document, from cache when possible.
func (s *DocumentService) load(ctx context.Context, id string) (*model.Document, error) {
	if doc, ok := s.cache.Get(id); ok {
		return doc.Clone(), nil
	}
	doc, err := retryRead(ctx, "document "+id, func(ctx context.Context) (*model.Document, error) {
		return s.Repo.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, doc.Clone())
	return doc, nil
}

// commit caches the new state and fans it out. Callers hold the document lock.
func (s *DocumentService) commit(doc *model.Document, actorID string) {
	s.cache.Add(doc.ID, doc.Clone())
	s.Hub.Publish(model.DocumentUpdated(doc.Clone(), actorID))
}

func (s *DocumentService) validateContent(content json.RawMessage) error {
	if len(content) == 0 || bytes.Equal(bytes.TrimSpace(content), []byte("null")) {
		return fmt.Errorf("%w: content is required", apperr.ErrValidation)
	}
	if len(content) > s.opts.MaxContentBytes {
		return fmt.Errorf("%w: content exceeds %d bytes", apperr.ErrValidation, s.opts.MaxContentBytes)
	}
	if !json.Valid(content) {
		return fmt.Errorf("%w: content is not valid JSON", apperr.ErrValidation)
	}
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultTitle, nil
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: name longer than %d characters", apperr.ErrValidation, maxNameLength)
	}
	return name, nil
}

// validateEmail accepts a bare address only; display-name forms are rejected.
func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email %q", apperr.ErrValidation, email)
	}
	return model.NormalizeEmail(email), nil
}
