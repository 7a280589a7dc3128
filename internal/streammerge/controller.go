// Package streammerge keeps a client's paginated message cache consistent
// with an in-flight streamed answer: the question is applied optimistically,
// streamed text accumulates under a sentinel assistant message, and a
// transport failure rolls the cache back to its pre-submission state.
package streammerge

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SentinelID is the placeholder identifier the streamed answer accumulates
// under until the server-persisted message replaces it on refresh.
const SentinelID = "ai-response"

type Message struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	IsUserMessage bool      `json:"is_user_message"`
	CreatedAt     time.Time `json:"created_at"`
}

// Page is one newest-first page of the cached message list.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// Controller is per-conversation state, passed explicitly to whoever drives
// the stream; there is no process-wide instance.
type Controller struct {
	mu sync.Mutex

	input       string
	inputBackup string

	pages    []Page
	snapshot []Page

	answer  string
	loading bool

	refresh       func()
	cancelRefresh func()
}

// New builds a controller. refresh triggers a background reload of the
// authoritative message list; cancelRefresh aborts any reload already in
// flight. Either may be nil.
func New(refresh, cancelRefresh func()) *Controller {
	return &Controller{refresh: refresh, cancelRefresh: cancelRefresh}
}

func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// SetPages replaces the cache with an authoritative read.
func (c *Controller) SetPages(pages []Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = clonePages(pages)
}

func (c *Controller) Pages() []Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return clonePages(c.pages)
}

// Submit starts an optimistic send: it backs up and clears the input,
// cancels any in-flight refresh so it cannot race the optimistic write,
// snapshots the cache, prepends a temporary user message and enters the
// loading state. It returns the submitted text.
func (c *Controller) Submit() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	text := c.input
	c.inputBackup = text
	c.input = ""
	c.answer = ""

	if c.cancelRefresh != nil {
		c.cancelRefresh()
	}

	c.snapshot = clonePages(c.pages)
	if len(c.pages) == 0 {
		c.pages = []Page{{}}
	}
	c.pages[0].Messages = append([]Message{{
		ID:            uuid.NewString(),
		Text:          text,
		IsUserMessage: true,
		CreatedAt:     time.Now(),
	}}, c.pages[0].Messages...)

	c.loading = true
	return text
}

// ApplyDelta merges one decoded text increment. The first increment creates
// the sentinel assistant message at the head of the first page; later ones
// update its text in place. Calling it repeatedly never duplicates the
// sentinel.
func (c *Controller) ApplyDelta(delta string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.answer += delta
	if len(c.pages) == 0 {
		c.pages = []Page{{}}
	}

	head := c.pages[0].Messages
	if len(head) > 0 && head[0].ID == SentinelID {
		head[0].Text = c.answer
		return
	}
	c.pages[0].Messages = append([]Message{{
		ID:        SentinelID,
		Text:      c.answer,
		CreatedAt: time.Now(),
	}}, head...)
}

// Answer returns the text accumulated so far.
func (c *Controller) Answer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answer
}

// Fail rolls the optimistic view back: the input is restored from the
// backup and the cache becomes exactly the pre-submission snapshot, so both
// the temporary user message and the sentinel disappear.
func (c *Controller) Fail() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.input = c.inputBackup
	c.pages = clonePages(c.snapshot)
}

// Settle runs on success and failure alike: it leaves the loading state and
// kicks off a background refresh so the sentinel is replaced by the
// server-persisted message on the next read.
func (c *Controller) Settle() {
	c.mu.Lock()
	refresh := c.refresh
	c.loading = false
	c.mu.Unlock()

	if refresh != nil {
		refresh()
	}
}

func clonePages(pages []Page) []Page {
	out := make([]Page, len(pages))
	for i, p := range pages {
		out[i] = Page{NextCursor: p.NextCursor}
		out[i].Messages = append([]Message(nil), p.Messages...)
	}
	return out
}
