package database

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"
)

// NoVernacularName labels species whose vernacular name is missing.
const NoVernacularName = "N/A"

// GroupKey selects which column identifies a species in search results.
type GroupKey int

const (
	// GroupByVernacular merges rows sharing a vernacular name; rows without
	// one fall into a single NoVernacularName bucket.
	GroupByVernacular GroupKey = iota
	// GroupByScientific merges rows sharing a scientific reference name.
	GroupByScientific
)

func (k GroupKey) expr() string {
	if k == GroupByScientific {
		return string(ColScientificName)
	}
	return fmt.Sprintf("COALESCE(%s, '%s')", ColVernacularName, NoVernacularName)
}

// SpeciesQuery describes one grouped species lookup.
type SpeciesQuery struct {
	Match        MatchSpec
	GroupBy      GroupKey
	WithCommunes bool
}

// CommuneDetail is one (commune, department) pair a species was seen in.
type CommuneDetail struct {
	Commune    string `json:"commune"`
	Department int    `json:"departement"`
}

// SpeciesSummary is the aggregated view of every row sharing a grouping key.
type SpeciesSummary struct {
	ScientificName    string          `json:"nomScientifiqueRef"`
	VernacularName    string          `json:"nomVernaculaire"`
	Kingdom           string          `json:"regne"`
	SimpleGroup       string          `json:"groupeTaxoSimple"`
	Statuses          []string        `json:"statuts"`
	TotalObservations int64           `json:"totalObservationsEspece"`
	Departments       []int           `json:"departements"`
	Communes          []CommuneDetail `json:"communesDetails,omitempty"`
	AggregationType   string          `json:"aggregation_type"`
}

type speciesRow struct {
	SpeciesKey        string
	VernName          *string
	SciName           string
	Kingdom           string
	SimpleGroup       string
	TotalObservations int64
	SortPriority      int
}

type detailRow struct {
	SpeciesKey string
	StatusCode *string
	Department int
	Commune    string
}

// groupedQuery is the filtered, grouped relation every species query starts from.
func (db *DB) groupedQuery(ctx context.Context, q SpeciesQuery) (*gorm.DB, error) {
	base, err := q.Match.apply(db.gorm.WithContext(ctx).Model(&Observation{}))
	if err != nil {
		return nil, err
	}
	return base.Group(q.GroupBy.expr()), nil
}

// CountSpecies returns how many species groups match the query.
func (db *DB) CountSpecies(ctx context.Context, q SpeciesQuery) (int64, error) {
	grouped, err := db.groupedQuery(ctx, q)
	if err != nil {
		return 0, err
	}
	sub := grouped.Select(q.GroupBy.expr() + " AS species_key")

	var total int64
	if err := db.gorm.WithContext(ctx).Table("(?) AS grouped", sub).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("counting species: %w", err)
	}
	return total, nil
}

// SpeciesPage returns one page of species summaries ordered by vernacular
// name with unnamed species last, then by scientific name.
//
// The set-valued fields (statuses, departments, communes) are filled by a
// second query restricted to the page's keys.
func (db *DB) SpeciesPage(ctx context.Context, q SpeciesQuery, offset, limit int) ([]SpeciesSummary, error) {
	grouped, err := db.groupedQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	key := q.GroupBy.expr()
	var rows []speciesRow
	err = grouped.
		Select(fmt.Sprintf(`%s AS species_key,
			MIN(vernacular_name) AS vern_name,
			MIN(scientific_name) AS sci_name,
			MIN(kingdom) AS kingdom,
			MIN(simple_group) AS simple_group,
			SUM(observation_count) AS total_observations,
			CASE WHEN MIN(vernacular_name) IS NULL THEN 1 ELSE 0 END AS sort_priority`, key)).
		Order("sort_priority, vern_name, sci_name, species_key").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetching species page: %w", err)
	}
	if len(rows) == 0 {
		return []SpeciesSummary{}, nil
	}

	items := make([]SpeciesSummary, len(rows))
	index := make(map[string]*SpeciesSummary, len(rows))
	keys := make([]string, len(rows))
	for i, r := range rows {
		vern := NoVernacularName
		if r.VernName != nil {
			vern = *r.VernName
		}
		items[i] = SpeciesSummary{
			ScientificName:    r.SciName,
			VernacularName:    vern,
			Kingdom:           r.Kingdom,
			SimpleGroup:       r.SimpleGroup,
			Statuses:          []string{},
			TotalObservations: r.TotalObservations,
			Departments:       []int{},
		}
		if q.WithCommunes {
			items[i].Communes = []CommuneDetail{}
		}
		index[r.SpeciesKey] = &items[i]
		keys[i] = r.SpeciesKey
	}

	if err := db.fillSpeciesSets(ctx, q, keys, index); err != nil {
		return nil, err
	}
	return items, nil
}

func (db *DB) fillSpeciesSets(ctx context.Context, q SpeciesQuery, keys []string, index map[string]*SpeciesSummary) error {
	base, err := q.Match.apply(db.gorm.WithContext(ctx).Model(&Observation{}))
	if err != nil {
		return err
	}

	key := q.GroupBy.expr()
	cols := fmt.Sprintf("DISTINCT %s AS species_key, status_code, department_code AS department", key)
	if q.WithCommunes {
		cols += ", commune"
	}

	var details []detailRow
	if err := base.Select(cols).Where(key+" IN ?", keys).Scan(&details).Error; err != nil {
		return fmt.Errorf("fetching species details: %w", err)
	}

	type sets struct {
		statuses    map[string]struct{}
		departments map[int]struct{}
		communes    map[CommuneDetail]struct{}
	}
	acc := make(map[string]*sets, len(keys))
	for _, d := range details {
		s, ok := acc[d.SpeciesKey]
		if !ok {
			s = &sets{
				statuses:    map[string]struct{}{},
				departments: map[int]struct{}{},
				communes:    map[CommuneDetail]struct{}{},
			}
			acc[d.SpeciesKey] = s
		}
		if d.StatusCode != nil && *d.StatusCode != "" {
			s.statuses[*d.StatusCode] = struct{}{}
		}
		s.departments[d.Department] = struct{}{}
		if q.WithCommunes {
			s.communes[CommuneDetail{Commune: d.Commune, Department: d.Department}] = struct{}{}
		}
	}

	for k, s := range acc {
		item, ok := index[k]
		if !ok {
			continue
		}
		for status := range s.statuses {
			item.Statuses = append(item.Statuses, status)
		}
		sort.Strings(item.Statuses)
		for dep := range s.departments {
			item.Departments = append(item.Departments, dep)
		}
		sort.Ints(item.Departments)
		if q.WithCommunes {
			for c := range s.communes {
				item.Communes = append(item.Communes, c)
			}
			sort.Slice(item.Communes, func(i, j int) bool {
				if item.Communes[i].Commune != item.Communes[j].Commune {
					return item.Communes[i].Commune < item.Communes[j].Commune
				}
				return item.Communes[i].Department < item.Communes[j].Department
			})
		}
	}
	return nil
}
