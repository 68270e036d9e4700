package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/GuideNaturel/internal/metrics"
	"github.com/TobiSchelling/GuideNaturel/internal/search"
	"github.com/TobiSchelling/GuideNaturel/internal/session"
	"github.com/TobiSchelling/GuideNaturel/internal/vocab"
)

var (
	ErrMissingInput         = errors.New("message or conversation_id missing")
	ErrConversationNotFound = errors.New("conversation not found or expired")
	ErrResultsNotReady      = errors.New("results not reached yet")
)

// InfoResultsDisplayed answers messages sent after results were shown.
const InfoResultsDisplayed = "Results displayed. Use pagination or new chat."

var md = goldmark.New()

// Searcher runs a filtered species search.
type Searcher interface {
	Search(ctx context.Context, filters search.Filters, page int) (*search.Page, error)
}

// Question is a stage as shown to the user.
type Question struct {
	Text        string        `json:"text"`
	HTML        template.HTML `json:"html"`
	ID          string        `json:"id"`
	IsSkippable bool          `json:"is_skippable"`
}

// Reply is the bot's answer to one request.
type Reply struct {
	ConversationID   string       `json:"conversation_id"`
	Question         *Question    `json:"question,omitempty"`
	IsFinalQuestions bool         `json:"is_final_questions"`
	ResultsData      *search.Page `json:"results_data,omitempty"`
	Info             string       `json:"info,omitempty"`
}

// Bot runs conversations through a Flow.
type Bot struct {
	flow      *Flow
	store     session.Store
	corrector *vocab.Corrector
	searcher  Searcher
	analytics Analytics
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// Option customizes a Bot.
type Option func(*Bot)

// WithAnalytics records skips and searches.
func WithAnalytics(a Analytics) Option {
	return func(b *Bot) { b.analytics = a }
}

// WithMetrics counts conversations and corrections.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// WithFlow replaces the default question flow.
func WithFlow(f *Flow) Option {
	return func(b *Bot) { b.flow = f }
}

// NewBot creates a Bot using DefaultFlow unless overridden.
func NewBot(store session.Store, corrector *vocab.Corrector, searcher Searcher, log zerolog.Logger, opts ...Option) *Bot {
	b := &Bot{
		flow:      DefaultFlow(),
		store:     store,
		corrector: corrector,
		searcher:  searcher,
		analytics: noopAnalytics{},
		log:       log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start opens a conversation and returns its first question.
func (b *Bot) Start() *Reply {
	first := b.flow.First()
	conv := session.NewConversation(first.ID)
	b.store.Set(conv)

	if b.metrics != nil {
		b.metrics.ConversationsTotal.Inc()
	}
	b.updateActive()
	b.log.Debug().Str("conversation_id", conv.ID).Msg("conversation started")

	return &Reply{ConversationID: conv.ID, Question: b.question(first)}
}

// Send records the answer to the current stage and moves on. Answering the
// last stage runs the search and returns its first page.
func (b *Bot) Send(ctx context.Context, conversationID, message string) (*Reply, error) {
	if conversationID == "" {
		return nil, ErrMissingInput
	}
	conv, ok := b.store.Get(conversationID)
	if !ok {
		return nil, ErrConversationNotFound
	}
	if conv.Mode == session.ModeResultsDisplayed {
		return &Reply{ConversationID: conv.ID, IsFinalQuestions: true, Info: InfoResultsDisplayed}, nil
	}

	stage, ok := b.flow.Stage(conv.Stage)
	if !ok {
		return nil, fmt.Errorf("conversation %s is at unknown stage %q", conv.ID, conv.Stage)
	}

	b.recordAnswer(ctx, conv, stage, message)

	if stage.Next == StageResults {
		page, err := b.searcher.Search(ctx, conv.Filters, 1)
		if err != nil {
			// Stay on the last stage so the user can retry.
			b.store.Set(conv)
			return nil, err
		}
		conv.Stage = StageResults
		conv.Mode = session.ModeResultsDisplayed
		b.store.Set(conv)
		b.recordSearch(ctx, conv, page)
		b.updateActive()
		return &Reply{ConversationID: conv.ID, IsFinalQuestions: true, ResultsData: page}, nil
	}

	next, ok := b.flow.Stage(stage.Next)
	if !ok {
		return nil, fmt.Errorf("stage %q points to unknown stage %q", stage.ID, stage.Next)
	}
	conv.Stage = next.ID
	b.store.Set(conv)
	b.updateActive()
	return &Reply{ConversationID: conv.ID, Question: b.question(next)}, nil
}

// Results returns another page for a conversation that reached its results.
func (b *Bot) Results(ctx context.Context, conversationID string, page int) (*Reply, error) {
	conv, ok := b.store.Get(conversationID)
	if !ok {
		return nil, ErrConversationNotFound
	}
	if conv.Mode != session.ModeResultsDisplayed {
		return nil, ErrResultsNotReady
	}

	result, err := b.searcher.Search(ctx, conv.Filters, page)
	if err != nil {
		return nil, err
	}
	b.recordSearch(ctx, conv, result)
	return &Reply{ConversationID: conv.ID, IsFinalQuestions: true, ResultsData: result}, nil
}

// Filters returns the filters accumulated so far.
func (b *Bot) Filters(conversationID string) (search.Filters, error) {
	conv, ok := b.store.Get(conversationID)
	if !ok {
		return search.Filters{}, ErrConversationNotFound
	}
	return conv.Filters, nil
}

// recordAnswer normalizes the answer, corrects it towards the field's
// vocabulary and stores it unless the stage is skipped.
func (b *Bot) recordAnswer(ctx context.Context, conv *session.Conversation, stage Stage, message string) {
	answer := strings.ToLower(strings.TrimSpace(message))
	value := answer

	if answer != "" {
		if m, ok := b.corrector.Best(string(stage.Field), answer); ok {
			if m.Score >= b.corrector.Threshold() {
				value = m.Value
				if b.metrics != nil && value != answer {
					b.metrics.CorrectionsTotal.WithLabelValues(string(stage.Field)).Inc()
				}
			}
			b.log.Debug().
				Str("field", string(stage.Field)).
				Str("input", answer).
				Str("best_match", m.Value).
				Int("score", m.Score).
				Msg("fuzzy match")
		}
	}

	if b.flow.IsSkip(stage, answer) {
		if err := b.analytics.RecordSkip(ctx, conv.ID, stage.ID); err != nil {
			b.log.Warn().Err(err).Str("question_id", stage.ID).Msg("recording skipped question")
		}
		return
	}
	if err := conv.Filters.Set(stage.Field, value); err != nil {
		b.log.Error().Err(err).Str("question_id", stage.ID).Msg("storing answer")
	}
}

func (b *Bot) recordSearch(ctx context.Context, conv *session.Conversation, page *search.Page) {
	if err := b.analytics.RecordSearch(ctx, conv.ID, conv.Filters, page); err != nil {
		b.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("recording search")
	}
}

func (b *Bot) updateActive() {
	if b.metrics != nil {
		b.metrics.ConversationsActive.Set(float64(b.store.Len()))
	}
}

func (b *Bot) question(s Stage) *Question {
	return &Question{Text: s.Text, HTML: renderMarkdown(s.Text), ID: s.ID, IsSkippable: s.Skippable}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(strings.TrimSpace(buf.String())) //nolint: gosec
}
