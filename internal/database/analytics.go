package database

import (
	"context"
	"fmt"
	"time"
)

// InsertSearchLog records an executed search.
func (db *DB) InsertSearchLog(ctx context.Context, entry *SearchLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := db.gorm.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("inserting search log: %w", err)
	}
	return nil
}

// InsertSkippedQuestion records a skipped chatbot stage.
func (db *DB) InsertSkippedQuestion(ctx context.Context, conversationID, questionID string) error {
	row := &SkippedQuestion{
		ConversationID: conversationID,
		QuestionID:     questionID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.gorm.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("inserting skipped question: %w", err)
	}
	return nil
}

// SkipCount is how often one question was skipped.
type SkipCount struct {
	QuestionID string
	Count      int64
}

// GetSkipCounts returns skip totals per question, most skipped first.
func (db *DB) GetSkipCounts(ctx context.Context) ([]SkipCount, error) {
	var out []SkipCount
	err := db.gorm.WithContext(ctx).Model(&SkippedQuestion{}).
		Select("question_id, COUNT(*) AS count").
		Group("question_id").
		Order("count DESC, question_id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("counting skipped questions: %w", err)
	}
	return out, nil
}

// PurgeAnalytics deletes analytics rows created before cutoff and returns
// the number of rows removed.
func (db *DB) PurgeAnalytics(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for _, model := range []any{&SearchLog{}, &SkippedQuestion{}} {
		res := db.gorm.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(model)
		if res.Error != nil {
			return total, fmt.Errorf("purging analytics: %w", res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}
