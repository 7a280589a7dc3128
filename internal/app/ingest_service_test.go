package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperchat/internal/billing"
	"paperchat/internal/model"
	"paperchat/internal/pkg/pdfpage"
)

func newTestIngestService(docs *fakeDocumentStore, embedder *fakeEmbedder, index *fakeIndex, fetcher *fakeFetcher, pages []pdfpage.Page, extractErr error) *IngestService {
	svc := NewIngestService(docs, embedder, index, fetcher, IngestOptions{
		ChunkSizeChars: 64,
		EmbedDim:       3,
	})
	svc.extract = func(io.Reader) ([]pdfpage.Page, error) {
		if extractErr != nil {
			return nil, extractErr
		}
		return pages, nil
	}
	return svc
}

func TestRegisterCreatesDocument(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestIngestService(docs, &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{}, nil, nil)

	doc, created, err := svc.Register(context.Background(), UploadCompleteInput{
		Key:    "uploads/a.pdf",
		Name:   "a.pdf",
		URL:    "https://storage.example/a.pdf",
		UserID: 1,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, model.UploadStatusProcessing, doc.UploadStatus)
}

func TestRegisterDuplicateCallbackIsNoOp(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestIngestService(docs, &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{}, nil, nil)
	input := UploadCompleteInput{Key: "uploads/a.pdf", URL: "https://storage.example/a.pdf", UserID: 1}

	first, created, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.Register(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, docs.docs, 1)
}

func TestRegisterConcurrentCallbacksYieldOneDocument(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestIngestService(docs, &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{}, nil, nil)
	input := UploadCompleteInput{Key: "uploads/raced.pdf", URL: "https://storage.example/raced.pdf", UserID: 1}

	var wg sync.WaitGroup
	results := make([]*model.Document, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = svc.Register(context.Background(), input)
		}(i)
	}
	wg.Wait()

	require.Len(t, docs.docs, 1)
	for i := 0; i < 8; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].ID, results[i].ID, "every callback sees the same winner")
	}
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	svc := newTestIngestService(newFakeDocumentStore(), &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{}, nil, nil)

	_, _, err := svc.Register(context.Background(), UploadCompleteInput{Key: "k", URL: "u"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, _, err = svc.Register(context.Background(), UploadCompleteInput{URL: "u", UserID: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessHappyPath(t *testing.T) {
	docs := newFakeDocumentStore()
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	pages := []pdfpage.Page{
		{Text: "chunk one content here", Number: 1},
		{Text: "chunk two content here", Number: 2},
	}
	svc := newTestIngestService(docs, embedder, index, &fakeFetcher{payload: []byte("%PDF")}, pages, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/b.pdf", URL: "https://storage.example/b.pdf", UserID: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), doc, billing.PlanByName("Free")))
	assert.Equal(t, model.UploadStatusSuccess, docs.statusOf(doc.ID))
	assert.Equal(t, 2, index.totalRecords())
	assert.Equal(t, 2, embedder.calls)
}

func TestProcessQuotaStopsBeforeEmbedding(t *testing.T) {
	docs := newFakeDocumentStore()
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	pages := make([]pdfpage.Page, 7)
	for i := range pages {
		pages[i] = pdfpage.Page{Text: "page text", Number: i + 1}
	}
	svc := newTestIngestService(docs, embedder, index, &fakeFetcher{payload: []byte("%PDF")}, pages, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/big.pdf", URL: "https://storage.example/big.pdf", UserID: 1,
	})
	require.NoError(t, err)

	err = svc.Process(context.Background(), doc, billing.PlanByName("Free"))
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, model.UploadStatusFailed, docs.statusOf(doc.ID))
	assert.Zero(t, embedder.calls, "no chunk may be embedded after quota overage")
	assert.Zero(t, index.totalRecords(), "no vector may be written after quota overage")
}

func TestProcessQuotaRespectsPlan(t *testing.T) {
	docs := newFakeDocumentStore()
	pages := make([]pdfpage.Page, 7)
	for i := range pages {
		pages[i] = pdfpage.Page{Text: "page text", Number: i + 1}
	}
	index := newFakeIndex()
	svc := newTestIngestService(docs, &fakeEmbedder{}, index, &fakeFetcher{payload: []byte("%PDF")}, pages, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/pro.pdf", URL: "https://storage.example/pro.pdf", UserID: 1,
	})
	require.NoError(t, err)

	// Seven pages pass on Pro where Free failed.
	require.NoError(t, svc.Process(context.Background(), doc, billing.PlanByName("Pro")))
	assert.Equal(t, model.UploadStatusSuccess, docs.statusOf(doc.ID))
}

func TestProcessParseFailureMarksFailed(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestIngestService(docs, &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{payload: []byte("not a pdf")}, nil, errors.New("bad xref"))

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/broken.pdf", URL: "https://storage.example/broken.pdf", UserID: 1,
	})
	require.NoError(t, err)

	err = svc.Process(context.Background(), doc, billing.PlanByName("Free"))
	require.ErrorIs(t, err, ErrParseFailure)
	assert.Equal(t, model.UploadStatusFailed, docs.statusOf(doc.ID))
}

func TestProcessFetchFailureMarksFailed(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestIngestService(docs, &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{err: errors.New("storage 503")}, nil, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/gone.pdf", URL: "https://storage.example/gone.pdf", UserID: 1,
	})
	require.NoError(t, err)

	err = svc.Process(context.Background(), doc, billing.PlanByName("Free"))
	require.Error(t, err)
	assert.Equal(t, model.UploadStatusFailed, docs.statusOf(doc.ID))
}

func TestProcessReingestionIsIdempotent(t *testing.T) {
	docs := newFakeDocumentStore()
	index := newFakeIndex()
	pages := []pdfpage.Page{
		{Text: "stable content on page one", Number: 1},
		{Text: "stable content on page two", Number: 2},
	}
	svc := newTestIngestService(docs, &fakeEmbedder{}, index, &fakeFetcher{payload: []byte("%PDF")}, pages, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/c.pdf", URL: "https://storage.example/c.pdf", UserID: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Process(context.Background(), doc, billing.PlanByName("Free")))
	firstIDs := recordIDs(index)
	firstCount := index.totalRecords()

	// Re-running over identical content leaves the record set unchanged:
	// same IDs, same count, nothing duplicated.
	require.NoError(t, svc.Process(context.Background(), doc, billing.PlanByName("Free")))
	assert.Equal(t, firstCount, index.totalRecords())
	assert.Equal(t, firstIDs, recordIDs(index))
}

func TestProcessVectorIDsAreUUIDs(t *testing.T) {
	docs := newFakeDocumentStore()
	index := newFakeIndex()
	pages := []pdfpage.Page{{Text: "some page content", Number: 1}}
	svc := newTestIngestService(docs, &fakeEmbedder{}, index, &fakeFetcher{payload: []byte("%PDF")}, pages, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/u.pdf", URL: "https://storage.example/u.pdf", UserID: 1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Process(context.Background(), doc, billing.PlanByName("Free")))

	ids := recordIDs(index)
	require.NotEmpty(t, ids)
	for _, id := range ids {
		_, err := uuid.Parse(id)
		assert.NoError(t, err, "point id %q must be a UUID", id)
	}
}

func TestProcessEmbedsInBatches(t *testing.T) {
	docs := newFakeDocumentStore()
	embedder := &fakeEmbedder{}
	index := newFakeIndex()
	pages := []pdfpage.Page{
		{Text: "first page", Number: 1},
		{Text: "second page", Number: 2},
		{Text: "third page", Number: 3},
	}
	svc := NewIngestService(docs, embedder, index, &fakeFetcher{payload: []byte("%PDF")}, IngestOptions{
		ChunkSizeChars:  64,
		EmbedDim:        3,
		UpsertBatchSize: 2,
	})
	svc.extract = func(io.Reader) ([]pdfpage.Page, error) { return pages, nil }

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/batched.pdf", URL: "https://storage.example/batched.pdf", UserID: 1,
	})
	require.NoError(t, err)
	require.NoError(t, svc.Process(context.Background(), doc, billing.PlanByName("Free")))

	// Three chunks with a batch size of two means one full and one partial
	// batch request, not one call per chunk.
	assert.Equal(t, 2, embedder.batchCalls)
	assert.Equal(t, 3, index.totalRecords())
}

func TestRetryOnlyFromFailed(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestIngestService(docs, &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{err: errors.New("down")}, nil, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/r.pdf", URL: "https://storage.example/r.pdf", UserID: 1,
	})
	require.NoError(t, err)

	// PROCESSING is not retryable.
	_, err = svc.Retry(context.Background(), doc.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_ = svc.Process(context.Background(), doc, billing.PlanByName("Free"))
	require.Equal(t, model.UploadStatusFailed, docs.statusOf(doc.ID))

	retried, err := svc.Retry(context.Background(), doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.UploadStatusProcessing, retried.UploadStatus)
}

func TestGetFileScopedToOwner(t *testing.T) {
	docs := newFakeDocumentStore()
	svc := newTestIngestService(docs, &fakeEmbedder{}, newFakeIndex(), &fakeFetcher{}, nil, nil)

	doc, _, err := svc.Register(context.Background(), UploadCompleteInput{
		Key: "uploads/mine.pdf", URL: "https://storage.example/mine.pdf", UserID: 1,
	})
	require.NoError(t, err)

	_, err = svc.GetFile(context.Background(), doc.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetFile(context.Background(), doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
}

func recordIDs(index *fakeIndex) []string {
	index.mu.Lock()
	defer index.mu.Unlock()
	var ids []string
	for _, rs := range index.records {
		for _, r := range rs {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
