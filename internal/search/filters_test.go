package search

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
)

func TestCompileOnlySuppliedFields(t *testing.T) {
	spec, hasDep := Compile(Filters{Kingdom: "Animalia", Commune: "  "}, zerolog.Nop())

	assert.False(t, hasDep)
	assert.Equal(t, []database.Clause{
		{Column: database.ColKingdom, Op: database.OpEqualFold, Value: "Animalia"},
	}, spec.Clauses)
}

func TestCompileAllFields(t *testing.T) {
	spec, hasDep := Compile(Filters{
		Kingdom:     "Animalia",
		SimpleGroup: "Ois",
		Department:  "21",
		Commune:     "Dij",
		Vernacular:  "merle",
		Status:      "lc",
	}, zerolog.Nop())

	assert.True(t, hasDep)
	assert.Equal(t, []database.Clause{
		{Column: database.ColKingdom, Op: database.OpEqualFold, Value: "Animalia"},
		{Column: database.ColSimpleGroup, Op: database.OpPrefixFold, Value: "Ois"},
		{Column: database.ColDepartment, Op: database.OpEquals, Value: 21},
		{Column: database.ColCommune, Op: database.OpPrefixFold, Value: "Dij"},
		{Column: database.ColVernacularName, Op: database.OpContainsFold, Value: "merle"},
		{Column: database.ColStatus, Op: database.OpEqualFold, Value: "lc"},
	}, spec.Clauses)
}

func TestCompileDropsInvalidDepartmentWithWarning(t *testing.T) {
	var buf bytes.Buffer
	spec, hasDep := Compile(Filters{Department: "côte-d'or", Kingdom: "Fungi"}, zerolog.New(&buf))

	assert.False(t, hasDep)
	assert.Len(t, spec.Clauses, 1)
	assert.False(t, spec.Has(database.ColDepartment))
	assert.Contains(t, buf.String(), "non-numeric department")
}

func TestFiltersSetGet(t *testing.T) {
	var f Filters
	require.NoError(t, f.Set(FieldCommune, "Dijon"))
	assert.Equal(t, "Dijon", f.Get(FieldCommune))
	assert.Equal(t, "Dijon", f.Commune)
	assert.False(t, f.IsEmpty())

	assert.Error(t, f.Set(Field("altitude"), "300"))
	assert.Equal(t, "", f.Get(Field("altitude")))
}

func TestParseField(t *testing.T) {
	f, err := ParseField("codeStatut")
	require.NoError(t, err)
	assert.Equal(t, FieldStatus, f)

	_, err = ParseField("nom")
	assert.Error(t, err)
}

func TestParseFilters(t *testing.T) {
	f, err := ParseFilters([]string{"regne=Animalia", " commune = Dijon ", "nomVernaculaire=mésange"})
	require.NoError(t, err)
	assert.Equal(t, Filters{Kingdom: "Animalia", Commune: "Dijon", Vernacular: "mésange"}, f)

	_, err = ParseFilters([]string{"altitude=300"})
	assert.Error(t, err)

	_, err = ParseFilters([]string{"regne"})
	assert.Error(t, err)

	f, err = ParseFilters(nil)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}
