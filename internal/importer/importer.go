// Package importer loads the regional INPN observation extract into the
// observation table: it filters unusable rows, collapses sightings to one
// row per species and commune, and attaches conservation status codes.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
)

// Observation extract columns.
const (
	colTaxonID        = "cdNom"
	colScientificName = "nomScientifiqueRef"
	colVernacularName = "nomVernaculaire"
	colKingdom        = "regne"
	colSimpleGroup    = "groupeTaxoSimple"
	colAdvancedGroup  = "groupeTaxoAvance"
	colCommune        = "commune"
	colDepartment     = "codeInseeDepartement"
)

// Status reference columns.
const (
	colStatusTaxonID = "CD_NOM"
	colStatusCode    = "CODE_STATUT"
)

// Drop reasons reported in Report.Dropped.
const (
	DropDepartment = "department"
	DropMissing    = "missing_commune_or_name"
	DropKingdom    = "excluded_kingdom"
	DropDuplicate  = "merged_duplicate"
)

var requiredColumns = []string{colScientificName, colKingdom, colCommune, colDepartment}

// ExcludedKingdoms are not shown by the guide.
var ExcludedKingdoms = []string{"Bacteria", "Chromista", "Protozoa"}

// OfficialStatuses are the codes kept after the status join; anything else
// is stored as NULL.
var OfficialStatuses = []string{"LC", "NT", "VU", "EN", "CR", "EW", "EX"}

// ErrMissingColumn is returned when a CSV header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Inserter stores imported rows.
type Inserter interface {
	InsertObservations(ctx context.Context, rows []database.Observation, replace bool) error
}

// Report summarizes an import run.
type Report struct {
	Read       int
	Kept       int
	WithStatus int
	Dropped    map[string]int
}

// Importer runs imports into an Inserter.
type Importer struct {
	store Inserter
	log   zerolog.Logger
}

func New(store Inserter, log zerolog.Logger) *Importer {
	return &Importer{store: store, log: log}
}

// ImportFiles opens the observation extract and the optional status
// reference (empty path to skip) and imports them.
func (im *Importer) ImportFiles(ctx context.Context, observationsPath, statusesPath string, replace bool) (*Report, error) {
	obs, err := os.Open(observationsPath)
	if err != nil {
		return nil, fmt.Errorf("opening observations: %w", err)
	}
	defer obs.Close()

	var statuses io.Reader
	if statusesPath != "" {
		f, err := os.Open(statusesPath)
		if err != nil {
			return nil, fmt.Errorf("opening statuses: %w", err)
		}
		defer f.Close()
		statuses = f
	}

	return im.Import(ctx, obs, statuses, replace)
}

// Import reads both CSV streams and inserts the resulting rows. statuses
// may be nil. With replace set, existing observations are removed first.
func (im *Importer) Import(ctx context.Context, observations, statuses io.Reader, replace bool) (*Report, error) {
	var codes map[int64]string
	if statuses != nil {
		var err error
		codes, err = ReadStatuses(statuses)
		if err != nil {
			return nil, err
		}
		im.log.Info().Int("taxa", len(codes)).Msg("loaded status codes")
	}

	rows, report, err := readObservations(observations)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		if rows[i].TaxonID == nil {
			continue
		}
		code, ok := codes[*rows[i].TaxonID]
		if !ok || !slices.Contains(OfficialStatuses, code) {
			continue
		}
		rows[i].StatusCode = &code
		report.WithStatus++
	}

	if err := im.store.InsertObservations(ctx, rows, replace); err != nil {
		return nil, err
	}

	im.log.Info().
		Int("read", report.Read).
		Int("kept", report.Kept).
		Int("with_status", report.WithStatus).
		Interface("dropped", report.Dropped).
		Bool("replace", replace).
		Msg("import complete")
	return report, nil
}

// ReadStatuses maps taxon ids to their first non-empty status code.
// Rows whose code is empty or the literal "true" are ignored.
func ReadStatuses(r io.Reader) (map[int64]string, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading status header: %w", err)
	}
	idx, err := columnIndex(header, colStatusTaxonID, colStatusCode)
	if err != nil {
		return nil, err
	}

	codes := make(map[int64]string)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading statuses: %w", err)
		}

		id, ok := parseTaxonID(field(rec, idx[colStatusTaxonID]))
		if !ok {
			continue
		}
		code := field(rec, idx[colStatusCode])
		if code == "" || code == "true" {
			continue
		}
		if _, seen := codes[id]; !seen {
			codes[id] = code
		}
	}
	return codes, nil
}

type speciesAtCommune struct {
	commune string
	name    string
}

func readObservations(r io.Reader) ([]database.Observation, *Report, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading observation header: %w", err)
	}
	idx, err := columnIndex(header, requiredColumns...)
	if err != nil {
		return nil, nil, err
	}
	optional := []string{colTaxonID, colVernacularName, colSimpleGroup, colAdvancedGroup}
	for _, name := range optional {
		if _, ok := idx[name]; !ok {
			idx[name] = -1
		}
	}

	report := &Report{Dropped: map[string]int{}}
	seen := make(map[speciesAtCommune]int)
	var rows []database.Observation

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading observations line %d: %w", report.Read+2, err)
		}
		report.Read++

		rawDep := field(rec, idx[colDepartment])
		dep, err := strconv.Atoi(rawDep)
		if strings.Contains(rawDep, " ") || err != nil {
			report.Dropped[DropDepartment]++
			continue
		}

		commune := field(rec, idx[colCommune])
		name := field(rec, idx[colScientificName])
		if commune == "" || name == "" {
			report.Dropped[DropMissing]++
			continue
		}

		kingdom := field(rec, idx[colKingdom])
		if slices.Contains(ExcludedKingdoms, kingdom) {
			report.Dropped[DropKingdom]++
			continue
		}

		key := speciesAtCommune{commune: commune, name: name}
		if i, ok := seen[key]; ok {
			rows[i].ObservationCount++
			report.Dropped[DropDuplicate]++
			continue
		}

		obs := database.Observation{
			ScientificName:   name,
			Kingdom:          kingdom,
			SimpleGroup:      field(rec, idx[colSimpleGroup]),
			AdvancedGroup:    field(rec, idx[colAdvancedGroup]),
			DepartmentCode:   dep,
			Commune:          commune,
			ObservationCount: 1,
		}
		if id, ok := parseTaxonID(field(rec, idx[colTaxonID])); ok {
			obs.TaxonID = &id
		}
		if v := field(rec, idx[colVernacularName]); v != "" {
			obs.VernacularName = &v
		}

		seen[key] = len(rows)
		rows = append(rows, obs)
	}

	report.Kept = len(rows)
	return rows, report, nil
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// columnIndex locates required columns in a header row.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, name)
		}
	}
	return idx, nil
}

// field returns a trimmed cell, or "" for absent columns and short records.
func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseTaxonID accepts "123" and the "123.0" form spreadsheets produce.
func parseTaxonID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}
