package charts

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
	"github.com/TobiSchelling/GuideNaturel/internal/metrics"
)

// fakeStore answers by dimension list and department (0 for global).
type fakeStore struct {
	mu    sync.Mutex
	rows  map[string]map[int][]database.GroupCount
	specs []database.GroupSpec
	err   error
}

func dimKey(dims []database.Column) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

func (f *fakeStore) CountSpeciesBy(_ context.Context, spec database.GroupSpec) ([]database.GroupCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	if f.err != nil {
		return nil, f.err
	}
	dep := 0
	if len(spec.Departments) == 1 {
		dep = spec.Departments[0]
	}
	return f.rows[dimKey(spec.Dimensions)][dep], nil
}

func gc(species int64, values ...string) database.GroupCount {
	return database.GroupCount{Values: values, Species: species}
}

func newTestBuilder(store Store, deps ...int) *Builder {
	return NewBuilder(store, nil, deps, nil, zerolog.Nop())
}

func TestStatusPercentages(t *testing.T) {
	store := &fakeStore{rows: map[string]map[int][]database.GroupCount{
		"status_code": {0: {gc(3, "LC"), gc(1, "VU")}},
	}}
	b := newTestBuilder(store)

	payload, err := b.Payload(context.Background(), string(InfoStatus))
	require.NoError(t, err)

	charts := payload.([]Chart)
	require.Len(t, charts, 1)
	c := charts[0]
	assert.Equal(t, []string{"Préoccupation mineure", "Vulnérable"}, c.Labels)
	assert.Equal(t, []float64{75, 25}, c.Data)
	assert.Equal(t, []int64{3, 1}, c.Counts)
	assert.Equal(t, []string{"#4CAF50", "#FBC02D"}, c.BackgroundColor)
	assert.Equal(t, "Répartition des espèces par codeStatut (BFC)", c.Title)
}

func TestStatusFoldsUnknownIntoOther(t *testing.T) {
	store := &fakeStore{rows: map[string]map[int][]database.GroupCount{
		"status_code": {0: {gc(2, ""), gc(1, "DD"), gc(1, "EN")}},
	}}
	b := newTestBuilder(store)

	payload, err := b.Payload(context.Background(), string(InfoStatus))
	require.NoError(t, err)

	c := payload.([]Chart)[0]
	assert.Equal(t, []string{"Autres (DD/Non spécifié)", "En danger"}, c.Labels)
	assert.Equal(t, []int64{3, 1}, c.Counts)
	assert.Equal(t, []float64{75, 25}, c.Data)
}

func TestPercentagesRoundToTwoDecimals(t *testing.T) {
	c := newChart("t", "", []slice{{label: "a", count: 1}, {label: "b", count: 2}})
	assert.Equal(t, []float64{33.33, 66.67}, c.Data)
}

func TestKingdomChartSortsAndLabelsMissing(t *testing.T) {
	store := &fakeStore{rows: map[string]map[int][]database.GroupCount{
		"kingdom": {0: {gc(1, ""), gc(2, "Plantae"), gc(1, "Animalia")}},
	}}
	b := newTestBuilder(store)

	payload, err := b.Payload(context.Background(), string(InfoKingdom))
	require.NoError(t, err)

	c := payload.([]Chart)[0]
	assert.Equal(t, []string{"Animalia", "Plantae", "Sans règne"}, c.Labels)
	assert.Equal(t, []string{"#FF6384", "#2DA03E", "#757575"}, c.BackgroundColor)
	assert.Equal(t, []float64{25, 50, 25}, c.Data)
}

func TestUnknownInfoFallsBackToKingdom(t *testing.T) {
	store := &fakeStore{rows: map[string]map[int][]database.GroupCount{
		"kingdom": {0: {gc(1, "Fungi")}},
	}}
	b := newTestBuilder(store)

	payload, err := b.Payload(context.Background(), "nope")
	require.NoError(t, err)

	charts := payload.([]Chart)
	require.Len(t, charts, 1)
	assert.Equal(t, []string{"Fungi"}, charts[0].Labels)
	assert.Equal(t, "Répartition des espèces par Règne (BFC)", charts[0].Title)
}

func TestPerDepartmentIncludesEmptyDepartments(t *testing.T) {
	store := &fakeStore{rows: map[string]map[int][]database.GroupCount{
		"kingdom": {21: {gc(4, "Animalia")}},
	}}
	b := newTestBuilder(store, 21, 25)

	payload, err := b.Payload(context.Background(), string(InfoKingdomByDepartment))
	require.NoError(t, err)

	byDep := payload.(map[int]Chart)
	require.Len(t, byDep, 2)
	assert.Equal(t, []float64{100}, byDep[21].Data)
	assert.Equal(t, "Répartition des espèces par Règne", byDep[21].Title)

	empty := byDep[25]
	assert.Equal(t, "Répartition des espèces par Règne", empty.Title)

	encoded, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels":[],"data":[],"backgroundColor":[],"counts":[],"title":"Répartition des espèces par Règne"}`, string(encoded))

	for _, spec := range store.specs {
		assert.True(t, spec.PerDepartment)
		assert.Len(t, spec.Departments, 1)
	}
}

func TestStatusPerKingdom(t *testing.T) {
	store := &fakeStore{rows: map[string]map[int][]database.GroupCount{
		"kingdom,status_code": {
			0:  {gc(1, "Plantae", "LC"), gc(3, "Animalia", "VU"), gc(1, "Animalia", "LC")},
			39: {gc(2, "Fungi", "")},
		},
	}}
	b := newTestBuilder(store, 39)

	payload, err := b.Payload(context.Background(), string(InfoStatusPerKingdom))
	require.NoError(t, err)
	charts := payload.([]Chart)
	require.Len(t, charts, 2)
	assert.Equal(t, "Statuts de conservation des espèces de Animalia (BFC)", charts[0].Title)
	assert.Equal(t, "Statuts de conservation", charts[0].LegendLabel)
	assert.Equal(t, []string{"Préoccupation mineure", "Vulnérable"}, charts[0].Labels)
	assert.Equal(t, []float64{25, 75}, charts[0].Data)
	assert.Equal(t, "Statuts de conservation des espèces de Plantae (BFC)", charts[1].Title)

	payload, err = b.Payload(context.Background(), string(InfoStatusPerKingdomByDepartment))
	require.NoError(t, err)
	byDep := payload.(map[int][]Chart)
	require.Len(t, byDep[39], 1)
	assert.Equal(t, "Statuts de conservation des espèces de Fungi (Dép. 39)", byDep[39][0].Title)
	assert.Equal(t, "Statuts de conservation (Fungi)", byDep[39][0].LegendLabel)
	assert.Equal(t, []string{"Autres (DD/Non spécifié)"}, byDep[39][0].Labels)
}

func TestGroupsPerKingdomOrdering(t *testing.T) {
	store := &fakeStore{rows: map[string]map[int][]database.GroupCount{
		"kingdom,simple_group": {0: {
			gc(1, "Plantae", "Plantes, mousses et fougères"),
			gc(2, "Animalia", "Oiseaux"),
			gc(2, "Animalia", "Mammifères"),
			gc(1, "Animalia", ""),
			gc(1, "Chromista", "Autres"),
			gc(1, "Fungi", "Champignons et lichens"),
		}},
	}}
	b := newTestBuilder(store)

	payload, err := b.Payload(context.Background(), string(InfoGroupsPerKingdom))
	require.NoError(t, err)
	charts := payload.([]Chart)
	require.Len(t, charts, 4)

	var titles []string
	for _, c := range charts {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{
		"Répartition des espèces par groupe taxonomique (Animalia, Global)",
		"Répartition des espèces par groupe taxonomique (Fungi, Global)",
		"Répartition des espèces par groupe taxonomique (Plantae, Global)",
		"Répartition des espèces par groupe taxonomique (Chromista, Global)",
	}, titles)

	animals := charts[0]
	assert.Equal(t, []string{"Autres Groupes Taxo", "Mammifères", "Oiseaux"}, animals.Labels)
	assert.Equal(t, []string{"#1f77b4", "#ff7f0e", "#2ca02c"}, animals.BackgroundColor)
	assert.Equal(t, []float64{20, 40, 40}, animals.Data)
	assert.Equal(t, "Groupes taxonomiques (Animalia)", animals.LegendLabel)
}

func TestStoreErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	b := newTestBuilder(&fakeStore{err: boom}, 21, 25, 39)

	_, err := b.Payload(context.Background(), string(InfoStatusByDepartment))
	assert.ErrorIs(t, err, boom)

	_, err = b.Payload(context.Background(), string(InfoKingdom))
	assert.ErrorIs(t, err, boom)
}

func TestPayloadCountsRequests(t *testing.T) {
	m := metrics.New()
	store := &fakeStore{}
	b := NewBuilder(store, nil, nil, m, zerolog.Nop())

	_, err := b.Payload(context.Background(), "whatever")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChartRequestsTotal.WithLabelValues(string(InfoKingdom))))
}

func TestParseDisplayRejectsMissingOther(t *testing.T) {
	_, err := ParseDisplay([]byte("statuses: [{code: LC}]\nother_status: Autre\ngroup_palette: ['#000']\n"))
	assert.Error(t, err)
}

func TestStatusChartAgainstDatabase(t *testing.T) {
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "charts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	lc, vu := "LC", "VU"
	rows := []database.Observation{
		{ScientificName: "Parus major", Kingdom: "Animalia", DepartmentCode: 21, Commune: "Dijon", StatusCode: &lc, ObservationCount: 1},
		{ScientificName: "Parus major", Kingdom: "Animalia", DepartmentCode: 25, Commune: "Besançon", StatusCode: &lc, ObservationCount: 1},
		{ScientificName: "Erithacus rubecula", Kingdom: "Animalia", DepartmentCode: 21, Commune: "Dijon", StatusCode: &lc, ObservationCount: 1},
		{ScientificName: "Quercus robur", Kingdom: "Plantae", DepartmentCode: 21, Commune: "Beaune", StatusCode: &lc, ObservationCount: 1},
		{ScientificName: "Lynx lynx", Kingdom: "Animalia", DepartmentCode: 39, Commune: "Morez", StatusCode: &vu, ObservationCount: 1},
	}
	require.NoError(t, db.InsertObservations(context.Background(), rows, false))

	b := NewBuilder(db, nil, []int{21, 39, 90}, nil, zerolog.Nop())

	payload, err := b.Payload(context.Background(), string(InfoStatus))
	require.NoError(t, err)
	c := payload.([]Chart)[0]
	assert.Equal(t, []int64{3, 1}, c.Counts)
	assert.Equal(t, []float64{75, 25}, c.Data)

	payload, err = b.Payload(context.Background(), string(InfoKingdomByDepartment))
	require.NoError(t, err)
	byDep := payload.(map[int]Chart)
	assert.Equal(t, []string{"Animalia", "Plantae"}, byDep[21].Labels)
	assert.Equal(t, []int64{2, 1}, byDep[21].Counts)
	assert.Equal(t, []int64{1}, byDep[39].Counts)
	assert.Empty(t, byDep[90].Labels)
}
