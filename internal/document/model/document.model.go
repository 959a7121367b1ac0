package model

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"naskahsync/pkg/apperr"
)

type DocType string

const (
	TypeText        DocType = "text"
	TypeSpreadsheet DocType = "spreadsheet"
)

// ParseDocType accepts the canonical tags plus the legacy "word" and "excel"
// names older clients still send.
func ParseDocType(s string) (DocType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "word":
		return TypeText, nil
	case "spreadsheet", "excel":
		return TypeSpreadsheet, nil
	}
	return "", fmt.Errorf("%w: unknown document type %q", apperr.ErrValidation, s)
}

// InitialContent is the empty value each editor widget expects.
func (t DocType) InitialContent() json.RawMessage {
	if t == TypeSpreadsheet {
		return json.RawMessage(`[[]]`)
	}
	return json.RawMessage(`""`)
}

// Document is the authoritative record. Content is opaque to the core and is
// only ever replaced as a whole.
type Document struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         DocType         `json:"type"`
	Content      json.RawMessage `json:"content"`
	Owner        string          `json:"owner"`
	SharedWith   []string        `json:"sharedWith"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastModified time.Time       `json:"lastModified"`
}

// Clone returns a deep copy safe to hand to other goroutines.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Content = slices.Clone(d.Content)
	c.SharedWith = slices.Clone(d.SharedWith)
	if c.SharedWith == nil {
		c.SharedWith = []string{}
	}
	return &c
}

// IsSharedWith reports sharedWith membership. Emails are stored normalized.
func (d *Document) IsSharedWith(email string) bool {
	_, found := slices.BinarySearch(d.SharedWith, NormalizeEmail(email))
	return found
}

// WithShare returns the sorted union of SharedWith and email.
func (d *Document) WithShare(email string) []string {
	email = NormalizeEmail(email)
	out := slices.Clone(d.SharedWith)
	i, found := slices.BinarySearch(out, email)
	if found {
		return out
	}
	return slices.Insert(out, i, email)
}

// NormalizeShares returns a sorted, duplicate-free copy of emails.
func NormalizeShares(emails []string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = NormalizeEmail(e); e != "" {
			out = append(out, e)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ChatMessage is immutable once appended. Seq breaks timestamp ties.
type ChatMessage struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"documentId"`
	SenderID    string    `json:"senderId"`
	SenderEmail string    `json:"senderEmail,omitempty"`
	Body        string    `json:"body"`
	Timestamp   time.Time `json:"timestamp"`
	Seq         int64     `json:"seq"`
}

// SortMessages orders by timestamp, then sequence.
func SortMessages(msgs []ChatMessage) {
	slices.SortStableFunc(msgs, func(a, b ChatMessage) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
}

type CreateDocResponse struct {
	DocID string `json:"document_id"`
}

type DocumentSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         DocType   `json:"type"`
	Owner        string    `json:"owner"`
	SharedWith   []string  `json:"sharedWith"`
	LastModified time.Time `json:"lastModified"`
	Snippet      string    `json:"snippet"`
	IsOwner      bool      `json:"is_owner"`
}

type CreateDocRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

type RenameRequest struct {
	Name string `json:"name"`
}

type ShareRequest struct {
	Email string `json:"email"`
}

type ContentRequest struct {
	Content json.RawMessage `json:"content"`
}

type ChatRequest struct {
	Body string `json:"body"`
}

type ExportResponse struct {
	Name    string          `json:"name"`
	Type    DocType         `json:"type"`
	Content json.RawMessage `json:"content"`
}
