// Package charts turns species counts into Chart.js-ready distribution
// payloads: by kingdom, by conservation status and per kingdom, either for
// the whole region or for each department.
package charts

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
	"github.com/TobiSchelling/GuideNaturel/internal/metrics"
)

// Info selects a payload.
type Info string

const (
	InfoKingdom                      Info = "especesParRegne"
	InfoKingdomByDepartment          Info = "especesParRegne_dep"
	InfoStatus                       Info = "especesParStatutConservation"
	InfoStatusByDepartment           Info = "especesParStatutConservation_dep"
	InfoStatusPerKingdom             Info = "statutsConservationParRegne"
	InfoStatusPerKingdomByDepartment Info = "statutsConservationParRegne_dep"
	InfoGroupsPerKingdom             Info = "groupesTaxoParRegne"
	InfoGroupsPerKingdomByDepartment Info = "groupesTaxoParRegne_dep"
)

// KnownInfos lists every payload key in a stable order.
var KnownInfos = []Info{
	InfoKingdom, InfoKingdomByDepartment,
	InfoStatus, InfoStatusByDepartment,
	InfoStatusPerKingdom, InfoStatusPerKingdomByDepartment,
	InfoGroupsPerKingdom, InfoGroupsPerKingdomByDepartment,
}

// maxParallelDepartments bounds concurrent per-department queries.
const maxParallelDepartments = 4

// Chart is one pie/doughnut dataset.
type Chart struct {
	Labels          []string  `json:"labels"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
	Counts          []int64   `json:"counts"`
	Title           string    `json:"title"`
	LegendLabel     string    `json:"legendLabel,omitempty"`
}

// Store counts distinct species by dimension.
type Store interface {
	CountSpeciesBy(ctx context.Context, spec database.GroupSpec) ([]database.GroupCount, error)
}

// Builder computes chart payloads.
type Builder struct {
	store       Store
	display     *Display
	departments []int
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewBuilder creates a Builder reporting per-department charts for departments.
// A nil display uses DefaultDisplay; m may be nil.
func NewBuilder(store Store, display *Display, departments []int, m *metrics.Metrics, log zerolog.Logger) *Builder {
	if display == nil {
		display = DefaultDisplay()
	}
	return &Builder{store: store, display: display, departments: departments, metrics: m, log: log}
}

// Payload returns the payload for info. Unknown keys fall back to the
// kingdom distribution.
//
// Global payloads are []Chart; per-department payloads are map[int]Chart or,
// for the per-kingdom variants, map[int][]Chart.
func (b *Builder) Payload(ctx context.Context, info string) (any, error) {
	key := Info(info)
	known := false
	for _, k := range KnownInfos {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		b.log.Debug().Str("info", info).Msg("unknown chart key, using kingdom distribution")
		key = InfoKingdom
	}
	if b.metrics != nil {
		b.metrics.ChartRequestsTotal.WithLabelValues(string(key)).Inc()
	}

	switch key {
	case InfoKingdomByDepartment:
		return perDepartment(ctx, b, b.kingdomChart)
	case InfoStatus:
		c, err := b.statusChart(ctx, 0)
		if err != nil {
			return nil, err
		}
		return []Chart{c}, nil
	case InfoStatusByDepartment:
		return perDepartment(ctx, b, b.statusChart)
	case InfoStatusPerKingdom:
		return b.statusPerKingdom(ctx, 0)
	case InfoStatusPerKingdomByDepartment:
		return perDepartment(ctx, b, b.statusPerKingdom)
	case InfoGroupsPerKingdom:
		return b.groupsPerKingdom(ctx, 0)
	case InfoGroupsPerKingdomByDepartment:
		return perDepartment(ctx, b, b.groupsPerKingdom)
	default:
		c, err := b.kingdomChart(ctx, 0)
		if err != nil {
			return nil, err
		}
		return []Chart{c}, nil
	}
}

// perDepartment runs build once per configured department, concurrently.
// Departments without data still get an entry.
func perDepartment[T any](ctx context.Context, b *Builder, build func(context.Context, int) (T, error)) (map[int]T, error) {
	results := make([]T, len(b.departments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDepartments)
	for i, dep := range b.departments {
		g.Go(func() error {
			r, err := build(gctx, dep)
			if err != nil {
				return fmt.Errorf("department %d: %w", dep, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[int]T, len(b.departments))
	for i, dep := range b.departments {
		out[dep] = results[i]
	}
	return out, nil
}

// count runs a grouping; dep 0 means the whole region.
func (b *Builder) count(ctx context.Context, dep int, dims ...database.Column) ([]database.GroupCount, error) {
	spec := database.GroupSpec{Dimensions: dims}
	if dep != 0 {
		spec.PerDepartment = true
		spec.Departments = []int{dep}
	}
	rows, err := b.store.CountSpeciesBy(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("counting species: %w", err)
	}
	return rows, nil
}

func (b *Builder) kingdomChart(ctx context.Context, dep int) (Chart, error) {
	rows, err := b.count(ctx, dep, database.ColKingdom)
	if err != nil {
		return Chart{}, err
	}

	acc := newTally()
	for _, r := range rows {
		label := b.display.Kingdom(r.Values[0])
		acc.add(label, b.display.KingdomColor(label), 0, r.Species)
	}
	items := acc.list()
	sort.SliceStable(items, func(i, j int) bool { return items[i].label < items[j].label })

	title := "Répartition des espèces par Règne (BFC)"
	if dep != 0 {
		title = "Répartition des espèces par Règne"
	}
	return newChart(title, "", items), nil
}

func (b *Builder) statusChart(ctx context.Context, dep int) (Chart, error) {
	rows, err := b.count(ctx, dep, database.ColStatus)
	if err != nil {
		return Chart{}, err
	}

	acc := newTally()
	for _, r := range rows {
		s := b.display.Status(r.Values[0])
		acc.add(s.Label, s.Color, s.Order, r.Species)
	}
	items := acc.list()
	sortByOrder(items)

	title := "Répartition des espèces par codeStatut (BFC)"
	if dep != 0 {
		title = "Répartition des espèces par codeStatut"
	}
	return newChart(title, "", items), nil
}

func (b *Builder) statusPerKingdom(ctx context.Context, dep int) ([]Chart, error) {
	rows, err := b.count(ctx, dep, database.ColKingdom, database.ColStatus)
	if err != nil {
		return nil, err
	}

	byKingdom := map[string]*tally{}
	for _, r := range rows {
		kingdom := b.display.Kingdom(r.Values[0])
		acc, ok := byKingdom[kingdom]
		if !ok {
			acc = newTally()
			byKingdom[kingdom] = acc
		}
		s := b.display.Status(r.Values[1])
		acc.add(s.Label, s.Color, s.Order, r.Species)
	}

	kingdoms := make([]string, 0, len(byKingdom))
	for k := range byKingdom {
		kingdoms = append(kingdoms, k)
	}
	sort.Strings(kingdoms)

	charts := make([]Chart, 0, len(kingdoms))
	for _, kingdom := range kingdoms {
		items := byKingdom[kingdom].list()
		sortByOrder(items)

		title := fmt.Sprintf("Statuts de conservation des espèces de %s (BFC)", kingdom)
		legend := "Statuts de conservation"
		if dep != 0 {
			title = fmt.Sprintf("Statuts de conservation des espèces de %s (Dép. %d)", kingdom, dep)
			legend = fmt.Sprintf("Statuts de conservation (%s)", kingdom)
		}
		charts = append(charts, newChart(title, legend, items))
	}
	return charts, nil
}

func (b *Builder) groupsPerKingdom(ctx context.Context, dep int) ([]Chart, error) {
	rows, err := b.count(ctx, dep, database.ColKingdom, database.ColSimpleGroup)
	if err != nil {
		return nil, err
	}

	byKingdom := map[string]*tally{}
	for _, r := range rows {
		kingdom := b.display.Kingdom(r.Values[0])
		acc, ok := byKingdom[kingdom]
		if !ok {
			acc = newTally()
			byKingdom[kingdom] = acc
		}
		acc.add(b.display.Group(r.Values[1]), "", 0, r.Species)
	}

	kingdoms := make([]string, 0, len(byKingdom))
	for k := range byKingdom {
		kingdoms = append(kingdoms, k)
	}
	sort.Slice(kingdoms, func(i, j int) bool {
		ri, rj := b.display.kingdomRank(kingdoms[i]), b.display.kingdomRank(kingdoms[j])
		if ri != rj {
			return ri < rj
		}
		return kingdoms[i] < kingdoms[j]
	})

	charts := make([]Chart, 0, len(kingdoms))
	for _, kingdom := range kingdoms {
		items := byKingdom[kingdom].list()
		sort.SliceStable(items, func(i, j int) bool { return items[i].label < items[j].label })
		for i := range items {
			items[i].color = b.display.GroupColor(i)
		}

		scope := "Global"
		if dep != 0 {
			scope = fmt.Sprintf("Dép. %d", dep)
		}
		charts = append(charts, newChart(
			fmt.Sprintf("Répartition des espèces par groupe taxonomique (%s, %s)", kingdom, scope),
			fmt.Sprintf("Groupes taxonomiques (%s)", kingdom),
			items,
		))
	}
	return charts, nil
}

type slice struct {
	label string
	color string
	order int
	count int64
}

// tally merges counts by label, keeping first-seen order.
type tally struct {
	index map[string]int
	items []slice
}

func newTally() *tally {
	return &tally{index: map[string]int{}}
}

func (s *tally) add(label, color string, order int, count int64) {
	if i, ok := s.index[label]; ok {
		s.items[i].count += count
		return
	}
	s.index[label] = len(s.items)
	s.items = append(s.items, slice{label: label, color: color, order: order, count: count})
}

func (s *tally) list() []slice {
	return s.items
}

func sortByOrder(items []slice) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].order < items[j].order })
}

// newChart converts counts to percentages of their total. All slices are
// non-nil so empty charts encode as [].
func newChart(title, legend string, items []slice) Chart {
	c := Chart{
		Labels:          make([]string, 0, len(items)),
		Data:            make([]float64, 0, len(items)),
		BackgroundColor: make([]string, 0, len(items)),
		Counts:          make([]int64, 0, len(items)),
		Title:           title,
		LegendLabel:     legend,
	}

	var total int64
	for _, it := range items {
		total += it.count
	}
	for _, it := range items {
		c.Labels = append(c.Labels, it.label)
		c.Data = append(c.Data, percent(it.count, total))
		c.BackgroundColor = append(c.BackgroundColor, it.color)
		c.Counts = append(c.Counts, it.count)
	}
	return c
}

func percent(n, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*100*100) / 100
}
