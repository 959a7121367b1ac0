// Package presence tracks which users are currently typing in a document.
// Entries are ephemeral: they expire after a TTL and are never persisted.
package presence

import (
	"container/heap"
	"slices"
	"sync"
	"time"
)

type entry struct {
	docID     string
	email     string
	expiresAt time.Time
	index     int
}

// expiryHeap is a min-heap of entries ordered by expiresAt.
type expiryHeap []*entry

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Tracker holds at most one entry per (document, user). A single heap indexes
// every entry by expiry so sweeping costs O(expired · log n) regardless of
// how often users type.
type Tracker struct {
	mu     sync.Mutex
	now    func() time.Time
	docs   map[string]map[string]*entry
	expiry expiryHeap
}

// New returns a Tracker using now as its clock; nil selects time.Now.
func New(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:  now,
		docs: make(map[string]map[string]*entry),
	}
}

// Touch marks email as typing in docID until now+ttl. It reports whether the
// visible set changed, i.e. the user was not already active.
func (t *Tracker) Touch(docID, email string, ttl time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	expiresAt := now.Add(ttl)

	users, ok := t.docs[docID]
	if !ok {
		users = make(map[string]*entry)
		t.docs[docID] = users
	}
	if e, ok := users[email]; ok {
		wasActive := e.expiresAt.After(now)
		e.expiresAt = expiresAt
		heap.Fix(&t.expiry, e.index)
		return !wasActive
	}

	e := &entry{docID: docID, email: email, expiresAt: expiresAt}
	users[email] = e
	heap.Push(&t.expiry, e)
	return true
}

// Clear removes email from docID and reports whether an entry was removed.
// An entry that expired but was not yet swept counts: subscribers were never
// told it went away, and once removed here Sweep will not report it.
func (t *Tracker) Clear(docID, email string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.docs[docID][email]
	if !ok {
		return false
	}
	t.remove(e)
	return true
}

// Snapshot returns the sorted emails whose entries have not yet expired.
// Expired entries are excluded even before the sweeper removes them.
func (t *Tracker) Snapshot(docID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	emails := make([]string, 0, len(t.docs[docID]))
	for email, e := range t.docs[docID] {
		if e.expiresAt.After(now) {
			emails = append(emails, email)
		}
	}
	slices.Sort(emails)
	return emails
}

// Sweep removes every expired entry and returns the distinct documents whose
// presence set shrank.
func (t *Tracker) Sweep() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var changed []string
	for t.expiry.Len() > 0 && !t.expiry[0].expiresAt.After(now) {
		e := t.expiry[0]
		t.remove(e)
		if !slices.Contains(changed, e.docID) {
			changed = append(changed, e.docID)
		}
	}
	return changed
}

// Len returns the number of tracked entries, expired or not.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expiry.Len()
}

func (t *Tracker) remove(e *entry) {
	heap.Remove(&t.expiry, e.index)
	users := t.docs[e.docID]
	delete(users, e.email)
	if len(users) == 0 {
		delete(t.docs, e.docID)
	}
}
