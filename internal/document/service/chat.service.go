package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"naskahsync/internal/access"
	"naskahsync/internal/document/model"
	"naskahsync/pkg/apperr"
	"naskahsync/pkg/metrics"
)

// SendChat appends a message to the document's chat log and fans it out.
// Messages are ordered by timestamp, with the store sequence breaking ties.
func (s *DocumentService) SendChat(ctx context.Context, user access.User, docID, body string) (*model.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: message body is empty", apperr.ErrValidation)
	}
	if utf8.RuneCountInString(body) > s.opts.MaxChatBody {
		return nil, fmt.Errorf("%w: message longer than %d characters", apperr.ErrValidation, s.opts.MaxChatBody)
	}

	unlock := s.locks.lock(docID)
	defer unlock()

	doc, err := s.load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !access.CanRead(user, doc) {
		metrics.Mutations.WithLabelValues("chat", "denied").Inc()
		return nil, apperr.ErrDenied
	}

	msg := &model.ChatMessage{
		ID:          newID(),
		DocumentID:  docID,
		SenderID:    user.ID,
		SenderEmail: model.NormalizeEmail(user.Email),
		Body:        body,
		Timestamp:   s.clock.Next(),
	}

	wctx, cancel := commitContext(ctx)
	defer cancel()
	if err := s.Chat.AppendMessage(wctx, msg); err != nil {
		metrics.Mutations.WithLabelValues("chat", "error").Inc()
		return nil, err
	}

	s.Hub.Publish(model.ChatAppended(msg))
	metrics.ChatMessages.Inc()
	metrics.Mutations.WithLabelValues("chat", "ok").Inc()
	return msg, nil
}

// ChatHistory returns the whole log of a readable document, oldest first.
func (s *DocumentService) ChatHistory(ctx context.Context, user access.User, docID string) ([]model.ChatMessage, error) {
	if _, err := s.GetDocument(ctx, user, docID); err != nil {
		return nil, err
	}
	msgs, err := retryRead(ctx, "chat history of "+docID, func(ctx context.Context) ([]model.ChatMessage, error) {
		return s.Chat.History(ctx, docID)
	})
	if err != nil {
		return nil, err
	}
	model.SortMessages(msgs)
	return msgs, nil
}
