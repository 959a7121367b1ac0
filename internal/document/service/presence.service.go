package service

import (
	"context"
	"time"

	"naskahsync/internal/access"
	"naskahsync/internal/document/model"
	"naskahsync/pkg/apperr"
	"naskahsync/pkg/logger"
	"naskahsync/pkg/metrics"
)

// Touch records typing activity. A PRESENCE_CHANGED event is published only
// when the user was not already visible; refreshing an active entry is silent.
func (s *DocumentService) Touch(ctx context.Context, user access.User, docID string) error {
	unlock := s.locks.lock(docID)
	defer unlock()

	doc, err := s.load(ctx, docID)
	if err != nil {
		return err
	}
	if !access.CanRead(user, doc) {
		return apperr.ErrDenied
	}

	email := model.NormalizeEmail(user.Email)
	if email == "" {
		// Presence is keyed by email; a token without one cannot appear.
		return nil
	}
	if s.Presence.Touch(docID, email, s.opts.PresenceTTL) {
		s.publishPresence(docID)
	}
	return nil
}

// ClearTyping drops the user's presence entry before it expires.
func (s *DocumentService) ClearTyping(ctx context.Context, user access.User, docID string) error {
	unlock := s.locks.lock(docID)
	defer unlock()

	doc, err := s.load(ctx, docID)
	if err != nil {
		return err
	}
	if !access.CanRead(user, doc) {
		return apperr.ErrDenied
	}

	if s.Presence.Clear(docID, model.NormalizeEmail(user.Email)) {
		s.publishPresence(docID)
	}
	return nil
}

// ActiveTypists returns the emails currently typing in a readable document.
func (s *DocumentService) ActiveTypists(ctx context.Context, user access.User, docID string) ([]string, error) {
	if _, err := s.GetDocument(ctx, user, docID); err != nil {
		return nil, err
	}
	return s.Presence.Snapshot(docID), nil
}

// SweepPresence expires stale entries and publishes the new set of every
// document that lost a typist.
func (s *DocumentService) SweepPresence() {
	for _, docID := range s.Presence.Sweep() {
		unlock := s.locks.lock(docID)
		s.publishPresence(docID)
		unlock()
	}
	metrics.PresenceEntries.Set(float64(s.Presence.Len()))
}

// RunPresenceSweeper sweeps on every tick until ctx is cancelled.
func (s *DocumentService) RunPresenceSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Sugar.Infof("Presence sweeper started (interval %s, ttl %s)", interval, s.opts.PresenceTTL)
	for {
		select {
		case <-ctx.Done():
			logger.Sugar.Info("Presence sweeper stopped")
			return
		case <-ticker.C:
			s.SweepPresence()
		}
	}
}

// publishPresence fans out the current set. Callers hold the document lock.
func (s *DocumentService) publishPresence(docID string) {
	s.Hub.Publish(model.PresenceChanged(docID, s.Presence.Snapshot(docID)))
}
