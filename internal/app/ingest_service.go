package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"paperchat/internal/billing"
	"paperchat/internal/model"
	"paperchat/internal/pkg/chunker"
	"paperchat/internal/pkg/pdfpage"
	"paperchat/internal/platform/qdrant"
	"paperchat/internal/repository"
)

// IngestService drives the upload → chunk → embed → upsert pipeline and
// owns the document status state machine.
type IngestService struct {
	docs     DocumentStore
	embedder Embedder
	index    VectorIndex
	fetcher  FileFetcher
	splitter *chunker.Splitter
	extract  func(r io.Reader) ([]pdfpage.Page, error)

	embedDim         int
	embedConcurrency int
	upsertBatchSize  int
}

type IngestOptions struct {
	ChunkSizeChars   int
	ExcerptBytes     int
	EmbedDim         int
	EmbedConcurrency int
	UpsertBatchSize  int
}

func NewIngestService(
	docs DocumentStore,
	embedder Embedder,
	index VectorIndex,
	fetcher FileFetcher,
	opts IngestOptions,
) *IngestService {
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = 4
	}
	if opts.UpsertBatchSize <= 0 {
		opts.UpsertBatchSize = 64
	}
	return &IngestService{
		docs:             docs,
		embedder:         embedder,
		index:            index,
		fetcher:          fetcher,
		splitter:         chunker.New(opts.ChunkSizeChars, opts.ExcerptBytes),
		extract:          pdfpage.Extract,
		embedDim:         opts.EmbedDim,
		embedConcurrency: opts.EmbedConcurrency,
		upsertBatchSize:  opts.UpsertBatchSize,
	}
}

// UploadCompleteInput is the triple the upload transport delivers once the
// bytes are durably stored, plus the authenticated caller.
type UploadCompleteInput struct {
	Key    string
	Name   string
	URL    string
	UserID uint
}

// Register records the upload. If a document with the same storage key
// already exists the call is a no-op returning the existing row, which
// absorbs duplicate upload-complete callbacks; the race between two
// near-simultaneous callbacks is settled by the unique index on key.
// The returned bool reports whether a new document was created.
func (s *IngestService) Register(ctx context.Context, input UploadCompleteInput) (*model.Document, bool, error) {
	if input.UserID == 0 {
		return nil, false, ErrUnauthorized
	}
	if strings.TrimSpace(input.Key) == "" || strings.TrimSpace(input.URL) == "" {
		return nil, false, ErrInvalidInput
	}

	existing, err := s.docs.GetByKey(input.Key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Untitled"
	}
	doc := &model.Document{
		ID:           uuid.NewString(),
		Key:          input.Key,
		Name:         name,
		URL:          input.URL,
		UserID:       input.UserID,
		UploadStatus: model.UploadStatusProcessing,
	}
	if err := s.docs.Create(doc); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			winner, getErr := s.docs.GetByKey(input.Key)
			if getErr != nil {
				return nil, false, getErr
			}
			return winner, false, nil
		}
		return nil, false, err
	}
	return doc, true, nil
}

// Process runs the pipeline for a freshly registered (or retried) document.
// Any failure leaves the row FAILED; partial vector writes are not rolled
// back because a later re-ingestion overwrites them under the same content
// hashes.
func (s *IngestService) Process(ctx context.Context, doc *model.Document, plan billing.Plan) error {
	raw, err := s.fetcher.Fetch(ctx, doc.URL)
	if err != nil {
		return s.fail(doc, fmt.Errorf("fetch upload failed: %w", err))
	}

	pages, err := s.extract(bytes.NewReader(raw))
	if err != nil {
		return s.fail(doc, fmt.Errorf("%w: %v", ErrParseFailure, err))
	}

	if len(pages) > plan.PagesPerPDF {
		// Overage terminates here; nothing is embedded or upserted.
		return s.fail(doc, fmt.Errorf("%w: %d pages, %s plan allows %d",
			ErrQuotaExceeded, len(pages), plan.Name, plan.PagesPerPDF))
	}

	chunks := s.splitter.SplitPages(pages)
	records := make([]qdrant.Record, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.embedConcurrency)
	for start := 0; start < len(chunks); start += s.upsertBatchSize {
		end := start + s.upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, batch := start, chunks[start:end]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, ch := range batch {
				texts[i] = ch.Text
			}
			vecs, err := s.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunk batch failed: %w", err)
			}
			for i, ch := range batch {
				records[start+i] = qdrant.Record{
					ID:      chunker.VectorID(ch.Text),
					Values:  vecs[i],
					Payload: qdrant.Payload{Text: ch.Excerpt, Page: ch.Page},
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.fail(doc, err)
	}

	namespace := qdrant.Namespace(doc.ID)
	if err := s.index.EnsureNamespace(ctx, namespace, s.embedDim); err != nil {
		return s.fail(doc, fmt.Errorf("ensure namespace failed: %w", err))
	}
	for start := 0; start < len(records); start += s.upsertBatchSize {
		end := start + s.upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := s.index.Upsert(ctx, namespace, records[start:end]); err != nil {
			return s.fail(doc, fmt.Errorf("upsert vectors failed: %w", err))
		}
	}

	if err := s.docs.UpdateStatus(doc.ID, model.UploadStatusSuccess); err != nil {
		return err
	}
	doc.UploadStatus = model.UploadStatusSuccess
	return nil
}

// Retry re-enters PROCESSING from FAILED only. The caller runs Process
// afterwards; idempotent content hashing makes the rerun safe over any
// vectors the failed attempt already wrote.
func (s *IngestService) Retry(ctx context.Context, documentID string, userID uint) (*model.Document, error) {
	doc, err := s.GetFile(ctx, documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc.UploadStatus != model.UploadStatusFailed {
		return nil, fmt.Errorf("%w: document is %s, only FAILED uploads can be retried",
			ErrInvalidInput, doc.UploadStatus)
	}
	if err := s.docs.UpdateStatus(doc.ID, model.UploadStatusProcessing); err != nil {
		return nil, err
	}
	doc.UploadStatus = model.UploadStatusProcessing
	return doc, nil
}

func (s *IngestService) GetFile(ctx context.Context, documentID string, userID uint) (*model.Document, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	doc, err := s.docs.GetByIDAndUserID(documentID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *IngestService) ListFiles(ctx context.Context, userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	return s.docs.ListByUserID(userID)
}

func (s *IngestService) fail(doc *model.Document, cause error) error {
	if err := s.docs.UpdateStatus(doc.ID, model.UploadStatusFailed); err != nil {
		return errors.Join(cause, err)
	}
	doc.UploadStatus = model.UploadStatusFailed
	return cause
}
