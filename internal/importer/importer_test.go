package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
)

const observationsCSV = `cdNom,nomScientifiqueRef,nomVernaculaire,regne,groupeTaxoSimple,groupeTaxoAvance,commune,codeInseeDepartement
3764,Parus major,Mésange charbonnière,Animalia,Oiseaux,Passériformes,Dijon,21
3764,Parus major,Mésange charbonnière,Animalia,Oiseaux,Passériformes,Dijon,21
3764,Parus major,Mésange charbonnière,Animalia,Oiseaux,Passériformes,Beaune,21
61714.0,Lynx lynx,Lynx boréal,Animalia,Mammifères,Carnivores,Morez,39
1,Escherichia coli,,Bacteria,Autres,,Dijon,21
2,Quercus robur,Chêne pédonculé,Plantae,"Plantes, mousses et fougères",Angiospermes,,21
3,Quercus robur,Chêne pédonculé,Plantae,"Plantes, mousses et fougères",Angiospermes,Dole,21 39
4,Fagus sylvatica,,Plantae,"Plantes, mousses et fougères",Angiospermes,Dole,2A
5,Fagus sylvatica,,Plantae,"Plantes, mousses et fougères",Angiospermes,Dole,39
`

const statusesCSV = `CD_NOM,CODE_STATUT,LB_TYPE_STATUT
3764,LC,Liste rouge
3764,VU,Liste rouge
61714,,Liste rouge
61714,true,Liste rouge
61714,EN,Liste rouge
5,DD,Liste rouge
`

type recordingInserter struct {
	rows    []database.Observation
	replace bool
}

func (r *recordingInserter) InsertObservations(_ context.Context, rows []database.Observation, replace bool) error {
	r.rows = rows
	r.replace = replace
	return nil
}

func TestImportFiltersAndMerges(t *testing.T) {
	store := &recordingInserter{}
	im := New(store, zerolog.Nop())

	report, err := im.Import(context.Background(), strings.NewReader(observationsCSV), strings.NewReader(statusesCSV), true)
	require.NoError(t, err)

	assert.Equal(t, 9, report.Read)
	assert.Equal(t, 4, report.Kept)
	assert.Equal(t, 3, report.WithStatus)
	assert.Equal(t, map[string]int{
		DropDepartment: 2,
		DropMissing:    1,
		DropKingdom:    1,
		DropDuplicate:  1,
	}, report.Dropped)
	assert.True(t, store.replace)

	require.Len(t, store.rows, 4)

	dijon := store.rows[0]
	assert.Equal(t, "Parus major", dijon.ScientificName)
	assert.Equal(t, "Dijon", dijon.Commune)
	assert.Equal(t, 2, dijon.ObservationCount)
	require.NotNil(t, dijon.StatusCode)
	assert.Equal(t, "LC", *dijon.StatusCode)
	require.NotNil(t, dijon.VernacularName)
	assert.Equal(t, "Mésange charbonnière", *dijon.VernacularName)

	assert.Equal(t, "Beaune", store.rows[1].Commune)
	assert.Equal(t, 1, store.rows[1].ObservationCount)

	lynx := store.rows[2]
	require.NotNil(t, lynx.TaxonID)
	assert.Equal(t, int64(61714), *lynx.TaxonID)
	require.NotNil(t, lynx.StatusCode)
	assert.Equal(t, "EN", *lynx.StatusCode)
	assert.Equal(t, 39, lynx.DepartmentCode)

	beech := store.rows[3]
	assert.Nil(t, beech.StatusCode, "DD is not an official code")
	assert.Nil(t, beech.VernacularName)
	assert.Equal(t, "Plantes, mousses et fougères", beech.SimpleGroup)
}

func TestImportWithoutStatuses(t *testing.T) {
	store := &recordingInserter{}
	report, err := New(store, zerolog.Nop()).Import(context.Background(), strings.NewReader(observationsCSV), nil, false)
	require.NoError(t, err)

	assert.Zero(t, report.WithStatus)
	for _, row := range store.rows {
		assert.Nil(t, row.StatusCode)
	}
}

func TestImportMissingColumn(t *testing.T) {
	_, err := New(&recordingInserter{}, zerolog.Nop()).Import(context.Background(),
		strings.NewReader("nomScientifiqueRef,regne,commune\nParus major,Animalia,Dijon\n"), nil, false)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReadStatusesKeepsFirstUsableCode(t *testing.T) {
	codes, err := ReadStatuses(strings.NewReader(statusesCSV))
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{3764: "LC", 61714: "EN", 5: "DD"}, codes)
}

func TestParseTaxonID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"3764", 3764, true},
		{"3764.0", 3764, true},
		{"3764.5", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseTaxonID(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestImportFilesIntoDatabase(t *testing.T) {
	dir := t.TempDir()
	obsPath := filepath.Join(dir, "observations.csv")
	statusPath := filepath.Join(dir, "statuses.csv")
	require.NoError(t, os.WriteFile(obsPath, []byte("\ufeff"+observationsCSV), 0o644))
	require.NoError(t, os.WriteFile(statusPath, []byte(statusesCSV), 0o644))

	db, err := database.OpenSQLite(filepath.Join(dir, "import.db"))
	require.NoError(t, err)
	defer db.Close()

	im := New(db, zerolog.Nop())
	_, err = im.ImportFiles(context.Background(), obsPath, statusPath, false)
	require.NoError(t, err)

	n, err := db.CountObservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	// Replacing must not duplicate rows.
	_, err = im.ImportFiles(context.Background(), obsPath, "", true)
	require.NoError(t, err)
	n, err = db.CountObservations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = im.ImportFiles(context.Background(), filepath.Join(dir, "missing.csv"), "", false)
	assert.Error(t, err)
}
