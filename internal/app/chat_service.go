package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"paperchat/internal/model"
	"paperchat/internal/platform/qdrant"
)

// ChatService drives one retrieval-augmented question: durable user-message
// append, embedding, top-K search, prompt assembly, streaming completion
// and persistence of the final answer.
type ChatService struct {
	docs      DocumentStore
	messages  MessageStore
	publisher MessagePublisher
	history   HistoryCache
	embedder  Embedder
	index     VectorIndex
	llm       CompletionStreamer

	topK          int
	historyWindow int
	pageSize      int
}

type ChatOptions struct {
	TopK          int
	HistoryWindow int
	PageSize      int
}

func NewChatService(
	docs DocumentStore,
	messages MessageStore,
	publisher MessagePublisher,
	history HistoryCache,
	embedder Embedder,
	index VectorIndex,
	llm CompletionStreamer,
	opts ChatOptions,
) *ChatService {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 6
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 10
	}
	return &ChatService{
		docs:          docs,
		messages:      messages,
		publisher:     publisher,
		history:       history,
		embedder:      embedder,
		index:         index,
		llm:           llm,
		topK:          opts.TopK,
		historyWindow: opts.HistoryWindow,
		pageSize:      opts.PageSize,
	}
}

type AskInput struct {
	FileID  string
	Message string
	UserID  uint
}

// StreamAnswer runs one question end to end. Deltas are forwarded to
// onDelta as they arrive; the assistant message is persisted only after the
// stream finishes cleanly, so a failed or cancelled generation leaves the
// history with the question but no answer.
func (s *ChatService) StreamAnswer(ctx context.Context, input AskInput, onDelta func(delta string) error) (*model.Message, error) {
	if input.UserID == 0 {
		return nil, ErrUnauthorized
	}
	question := strings.TrimSpace(input.Message)
	if question == "" {
		return nil, ErrInvalidInput
	}

	doc, err := s.docs.GetByIDAndUserID(input.FileID, input.UserID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}

	// The question is appended before any retrieval work so history shows
	// it even if generation fails below.
	userMessage := model.Message{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		UserID:        input.UserID,
		Text:          question,
		IsUserMessage: true,
		CreatedAt:     time.Now(),
	}
	s.invalidateHistory(ctx, doc.ID)
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageEnqueue, err)
	}

	vector, err := s.embedder.Embed(ctx, strings.Join(strings.Fields(question), " "))
	if err != nil {
		return nil, fmt.Errorf("embed question failed: %w", err)
	}

	matches, err := s.index.Query(ctx, qdrant.Namespace(doc.ID), vector, s.topK, true)
	if err != nil {
		return nil, fmt.Errorf("query vector index failed: %w", err)
	}
	excerpts := make([]string, 0, len(matches))
	for _, m := range matches {
		excerpts = append(excerpts, m.Payload.Text)
	}

	recent, err := s.recentHistory(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	prompt := BuildPrompt(chronological(recent), excerpts, question)

	full, err := s.llm.StreamComplete(ctx, prompt, onDelta)
	if err != nil {
		return nil, fmt.Errorf("completion stream failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// Cancelled mid-stream: the transport is gone, persist nothing.
		return nil, err
	}

	assistantMessage := model.Message{
		ID:            uuid.NewString(),
		DocumentID:    doc.ID,
		UserID:        input.UserID,
		Text:          full,
		IsUserMessage: false,
		CreatedAt:     time.Now(),
	}
	s.invalidateHistory(ctx, doc.ID)
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageEnqueue, err)
	}
	return &assistantMessage, nil
}

// MessagePage is one newest-first page of the conversation log.
type MessagePage struct {
	Messages   []model.Message `json:"messages"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (s *ChatService) ListMessages(ctx context.Context, userID uint, fileID string, limit int, cursor string) (*MessagePage, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	doc, err := s.docs.GetByIDAndUserID(fileID, userID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	if limit <= 0 || limit > 100 {
		limit = s.pageSize
	}
	messages, next, err := s.messages.ListPageByDocumentID(doc.ID, limit, cursor)
	if err != nil {
		return nil, err
	}
	return &MessagePage{Messages: messages, NextCursor: next}, nil
}

// recentHistory returns the newest-first conversation window, served from
// the cache when it is clean.
func (s *ChatService) recentHistory(ctx context.Context, documentID string) ([]model.Message, error) {
	if s.history != nil {
		if dirty, err := s.history.IsDirty(ctx, documentID); err == nil && !dirty {
			if cached, hit, cacheErr := s.history.GetHistory(ctx, documentID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	recent, err := s.messages.ListRecentByDocumentID(documentID, s.historyWindow)
	if err != nil {
		return nil, err
	}
	if s.history != nil {
		if dirty, dirtyErr := s.history.IsDirty(ctx, documentID); dirtyErr == nil && !dirty {
			_ = s.history.SetHistory(ctx, documentID, recent)
		}
	}
	return recent, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, documentID string) {
	if s.history == nil {
		return
	}
	_ = s.history.MarkDirty(ctx, documentID)
	_ = s.history.DeleteHistory(ctx, documentID)
}
