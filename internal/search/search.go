// Package search compiles filters and runs paginated species lookups.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
	"github.com/TobiSchelling/GuideNaturel/internal/metrics"
	"github.com/TobiSchelling/GuideNaturel/internal/paging"
)

var (
	// ErrQueryTimeout means a database round trip exceeded its deadline.
	ErrQueryTimeout = errors.New("species query timed out")
	// ErrStoreUnavailable wraps any other database failure.
	ErrStoreUnavailable = errors.New("observation store unavailable")
)

const (
	MessageNoCriteria = "Veuillez spécifier au moins un critère de recherche."
	MessageNoResults  = "Désolée, je n'ai rien trouvé avec ces critères..."
	messagePage       = "Page %d sur %d (%d espèces trouvées)"
)

// AggregationType tags which grouping shape produced a page.
type AggregationType string

const (
	AggregationDepartment AggregationType = "departement_specifique"
	AggregationNational   AggregationType = "nationale_sans_communes"
	AggregationNone       AggregationType = "none"
)

// Store is the slice of the database the searcher needs.
type Store interface {
	CountSpecies(ctx context.Context, q database.SpeciesQuery) (int64, error)
	SpeciesPage(ctx context.Context, q database.SpeciesQuery, offset, limit int) ([]database.SpeciesSummary, error)
}

// Page is one page of search results.
type Page struct {
	Items           []database.SpeciesSummary `json:"items"`
	Message         string                    `json:"message"`
	Page            int                       `json:"page"`
	PerPage         int                       `json:"per_page"`
	TotalItems      int                       `json:"total_items"`
	TotalPages      int                       `json:"total_pages"`
	QueryUsed       database.MatchSpec        `json:"query_used"`
	AggregationType AggregationType           `json:"aggregation_type"`
}

// Options tunes a Searcher.
type Options struct {
	PageSize     int
	QueryTimeout time.Duration
	GroupBy      database.GroupKey
	Metrics      *metrics.Metrics
}

// Searcher runs species searches against a Store.
type Searcher struct {
	store Store
	opts  Options
	log   zerolog.Logger
}

// New creates a Searcher. PageSize defaults to 50.
func New(store Store, opts Options, log zerolog.Logger) *Searcher {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	return &Searcher{store: store, opts: opts, log: log}
}

// Search returns the requested page of species matching filters.
// An empty filter set returns a guard page without touching the store;
// requested pages outside the valid range are clamped.
func (s *Searcher) Search(ctx context.Context, filters Filters, requested int) (*Page, error) {
	start := time.Now()
	spec, hasDepartment := Compile(filters, s.log)

	if spec.Empty() {
		s.observe(AggregationNone, 0, start)
		return &Page{
			Items:           []database.SpeciesSummary{},
			Message:         MessageNoCriteria,
			Page:            1,
			PerPage:         s.opts.PageSize,
			QueryUsed:       spec,
			AggregationType: AggregationNone,
		}, nil
	}

	shape := AggregationNational
	if hasDepartment {
		shape = AggregationDepartment
	}
	q := database.SpeciesQuery{Match: spec, GroupBy: s.opts.GroupBy, WithCommunes: hasDepartment}

	var total int64
	err := s.roundTrip(ctx, "count", func(ctx context.Context) error {
		var err error
		total, err = s.store.CountSpecies(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	if total == 0 {
		s.observe(shape, 0, start)
		return &Page{
			Items:           []database.SpeciesSummary{},
			Message:         MessageNoResults,
			Page:            1,
			PerPage:         s.opts.PageSize,
			QueryUsed:       spec,
			AggregationType: shape,
		}, nil
	}

	window, err := paging.Compute(int(total), s.opts.PageSize, requested)
	if err != nil {
		return nil, fmt.Errorf("computing page window: %w", err)
	}

	var items []database.SpeciesSummary
	err = s.roundTrip(ctx, "page", func(ctx context.Context) error {
		var err error
		items, err = s.store.SpeciesPage(ctx, q, window.Offset, window.Limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].AggregationType = string(shape)
	}

	s.log.Debug().
		Str("aggregation_type", string(shape)).
		Int("page", window.Page).
		Int64("total_items", total).
		Int("items", len(items)).
		Msg("search completed")
	s.observe(shape, len(items), start)

	return &Page{
		Items:           items,
		Message:         fmt.Sprintf(messagePage, window.Page, window.TotalPages, total),
		Page:            window.Page,
		PerPage:         s.opts.PageSize,
		TotalItems:      int(total),
		TotalPages:      window.TotalPages,
		QueryUsed:       spec,
		AggregationType: shape,
	}, nil
}

// roundTrip runs one database call under the query timeout and classifies
// its failure.
func (s *Searcher) roundTrip(ctx context.Context, name string, fn func(context.Context) error) error {
	qctx := ctx
	if s.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, s.opts.QueryTimeout)
		defer cancel()
	}

	err := fn(qctx)
	if err == nil {
		return nil
	}

	reason := "error"
	switch {
	case ctx.Err() != nil:
		// The caller went away; not a store problem.
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(qctx.Err(), context.DeadlineExceeded):
		reason = "timeout"
		err = fmt.Errorf("%w: %s: %w", ErrQueryTimeout, name, err)
	default:
		err = fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, name, err)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.QueryErrorsTotal.WithLabelValues(reason).Inc()
	}
	return err
}

func (s *Searcher) observe(shape AggregationType, results int, start time.Time) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveSearch(string(shape), results, time.Since(start))
	}
}
