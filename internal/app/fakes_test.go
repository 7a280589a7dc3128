package app

import (
	"context"
	"fmt"
	"sync"

	"paperchat/internal/ai"
	"paperchat/internal/model"
	"paperchat/internal/platform/qdrant"
	"paperchat/internal/repository"
)

// fakeDocumentStore implements DocumentStore over an in-memory map with the
// same unique-key arbitration the real repository gets from MySQL.
type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[string]*model.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: map[string]*model.Document{}}
}

func (f *fakeDocumentStore) Create(doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.docs {
		if existing.Key == doc.Key {
			return repository.ErrDuplicateKey
		}
	}
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocumentStore) GetByKey(key string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.Key == key {
			copied := *d
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeDocumentStore) GetByID(id string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeDocumentStore) GetByIDAndUserID(id string, userID uint) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok && d.UserID == userID {
		copied := *d
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeDocumentStore) ListByUserID(userID uint) ([]model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Document
	for _, d := range f.docs {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDocumentStore) UpdateStatus(id string, status model.UploadStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	d.UploadStatus = status
	return nil
}

func (f *fakeDocumentStore) statusOf(id string) model.UploadStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d, ok := f.docs[id]; ok {
		return d.UploadStatus
	}
	return ""
}

// fakeMessageStore keeps messages newest first, the order the repository
// returns them in.
type fakeMessageStore struct {
	mu       sync.Mutex
	messages []model.Message
}

func (f *fakeMessageStore) add(msg model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append([]model.Message{msg}, f.messages...)
}

func (f *fakeMessageStore) ListRecentByDocumentID(documentID string, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Message
	for _, m := range f.messages {
		if m.DocumentID != documentID {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMessageStore) ListPageByDocumentID(documentID string, limit int, cursor string) ([]model.Message, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var scoped []model.Message
	for _, m := range f.messages {
		if m.DocumentID == documentID {
			scoped = append(scoped, m)
		}
	}
	start := 0
	if cursor != "" {
		for i, m := range scoped {
			if m.ID == cursor {
				start = i
				break
			}
		}
	}
	end := start + limit
	next := ""
	if end < len(scoped) {
		next = scoped[end].ID
	} else {
		end = len(scoped)
	}
	return scoped[start:end], next, nil
}

// fakePublisher records published messages and feeds them straight into the
// message store, standing in for broker plus persistence worker.
type fakePublisher struct {
	mu        sync.Mutex
	published []model.Message
	store     *fakeMessageStore
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, msg model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	if f.store != nil {
		f.store.add(msg)
	}
	return nil
}

type fakeEmbedder struct {
	mu         sync.Mutex
	calls      int
	batchCalls int
	err        error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	return []float32{float32(len(text)), 0.5, 0.25}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batchCalls++
	f.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// fakeIndex records upserts per namespace and serves queries from them.
type fakeIndex struct {
	mu         sync.Mutex
	namespaces map[string]int
	records    map[string][]qdrant.Record
	queryErr   error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{namespaces: map[string]int{}, records: map[string][]qdrant.Record{}}
}

func (f *fakeIndex) EnsureNamespace(ctx context.Context, namespace string, dimension int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.namespaces[namespace] = dimension
	return nil
}

// Upsert overwrites on ID collision, matching the index's point semantics.
func (f *fakeIndex) Upsert(ctx context.Context, namespace string, records []qdrant.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		replaced := false
		for i, existing := range f.records[namespace] {
			if existing.ID == rec.ID {
				f.records[namespace][i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			f.records[namespace] = append(f.records[namespace], rec)
		}
	}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, namespace string, vector []float32, topK int, includePayload bool) ([]qdrant.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []qdrant.Match
	for _, r := range f.records[namespace] {
		if len(out) == topK {
			break
		}
		out = append(out, qdrant.Match{ID: r.ID, Score: 0.9, Payload: r.Payload})
	}
	return out, nil
}

func (f *fakeIndex) totalRecords() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, rs := range f.records {
		total += len(rs)
	}
	return total
}

// fakeStreamer emits a fixed answer in fixed-size pieces and remembers the
// prompt it was handed.
type fakeStreamer struct {
	mu        sync.Mutex
	answer    string
	chunkSize int
	err       error
	prompt    []ai.ChatMessage
}

func (f *fakeStreamer) StreamComplete(ctx context.Context, messages []ai.ChatMessage, onDelta func(delta string) error) (string, error) {
	f.mu.Lock()
	f.prompt = append([]ai.ChatMessage(nil), messages...)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	size := f.chunkSize
	if size <= 0 {
		size = 8
	}
	for i := 0; i < len(f.answer); i += size {
		end := i + size
		if end > len(f.answer) {
			end = len(f.answer)
		}
		if err := onDelta(f.answer[i:end]); err != nil {
			return "", err
		}
	}
	return f.answer, nil
}

func (f *fakeStreamer) lastPrompt() []ai.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ai.ChatMessage(nil), f.prompt...)
}

type fakeFetcher struct {
	payload []byte
	err     error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}
