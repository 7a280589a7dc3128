package app

import (
	"context"

	"paperchat/internal/ai"
	"paperchat/internal/model"
	"paperchat/internal/platform/qdrant"
)

// The services depend on these small interfaces rather than the concrete
// repository/platform types so the pipelines can be exercised without a
// database, broker, or live model endpoint.

type DocumentStore interface {
	Create(doc *model.Document) error
	GetByKey(key string) (*model.Document, error)
	GetByID(id string) (*model.Document, error)
	GetByIDAndUserID(id string, userID uint) (*model.Document, error)
	ListByUserID(userID uint) ([]model.Document, error)
	UpdateStatus(id string, status model.UploadStatus) error
}

type MessageStore interface {
	ListRecentByDocumentID(documentID string, limit int) ([]model.Message, error)
	ListPageByDocumentID(documentID string, limit int, cursor string) ([]model.Message, string, error)
}

// MessagePublisher is the durable append for the conversation log.
type MessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, documentID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, documentID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, documentID string) error
	MarkDirty(ctx context.Context, documentID string) error
	IsDirty(ctx context.Context, documentID string) (bool, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorIndex interface {
	EnsureNamespace(ctx context.Context, namespace string, dimension int) error
	Upsert(ctx context.Context, namespace string, records []qdrant.Record) error
	Query(ctx context.Context, namespace string, vector []float32, topK int, includePayload bool) ([]qdrant.Match, error)
}

type CompletionStreamer interface {
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onDelta func(delta string) error) (string, error)
}

// FileFetcher pulls the raw uploaded bytes from the upload transport's URL.
type FileFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
