package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
	"github.com/TobiSchelling/GuideNaturel/internal/search"
)

// Analytics receives observational side-writes. Failures never affect the
// conversation; the bot only logs them.
type Analytics interface {
	RecordSkip(ctx context.Context, conversationID, questionID string) error
	RecordSearch(ctx context.Context, conversationID string, filters search.Filters, page *search.Page) error
}

// DBAnalytics writes analytics rows to the observation database.
type DBAnalytics struct {
	db *database.DB
}

func NewDBAnalytics(db *database.DB) *DBAnalytics {
	return &DBAnalytics{db: db}
}

func (a *DBAnalytics) RecordSkip(ctx context.Context, conversationID, questionID string) error {
	return a.db.InsertSkippedQuestion(ctx, conversationID, questionID)
}

func (a *DBAnalytics) RecordSearch(ctx context.Context, conversationID string, filters search.Filters, page *search.Page) error {
	encoded, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("encoding filters: %w", err)
	}
	return a.db.InsertSearchLog(ctx, &database.SearchLog{
		ConversationID:  conversationID,
		Filters:         string(encoded),
		AggregationType: string(page.AggregationType),
		TotalItems:      page.TotalItems,
		Page:            page.Page,
	})
}

// noopAnalytics discards everything.
type noopAnalytics struct{}

func (noopAnalytics) RecordSkip(context.Context, string, string) error { return nil }

func (noopAnalytics) RecordSearch(context.Context, string, search.Filters, *search.Page) error {
	return nil
}
