package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TobiSchelling/GuideNaturel/internal/database"
)

// Field is a filter name as it appears on the wire.
type Field string

const (
	FieldKingdom     Field = "regne"
	FieldSimpleGroup Field = "groupeTaxoSimple"
	FieldDepartment  Field = "codeInseeDepartement"
	FieldCommune     Field = "commune"
	FieldVernacular  Field = "nomVernaculaire"
	FieldStatus      Field = "codeStatut"
)

// Fields lists every filter in compile order.
var Fields = []Field{FieldKingdom, FieldSimpleGroup, FieldDepartment, FieldCommune, FieldVernacular, FieldStatus}

// ParseField validates a wire filter name.
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown filter %q", name)
}

// ParseFilters builds Filters from name=value pairs using wire names, as in
// "regne=Animalia". Unknown names and pairs without "=" are rejected.
func ParseFilters(pairs []string) (Filters, error) {
	var f Filters
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Filters{}, fmt.Errorf("filter %q: expected name=value", pair)
		}
		field, err := ParseField(strings.TrimSpace(name))
		if err != nil {
			return Filters{}, err
		}
		if err := f.Set(field, strings.TrimSpace(value)); err != nil {
			return Filters{}, err
		}
	}
	return f, nil
}

// Filters is a partially specified search. Empty fields do not constrain.
type Filters struct {
	Kingdom     string `json:"regne,omitempty"`
	SimpleGroup string `json:"groupeTaxoSimple,omitempty"`
	Department  string `json:"codeInseeDepartement,omitempty"`
	Commune     string `json:"commune,omitempty"`
	Vernacular  string `json:"nomVernaculaire,omitempty"`
	Status      string `json:"codeStatut,omitempty"`
}

func (f *Filters) ref(field Field) *string {
	switch field {
	case FieldKingdom:
		return &f.Kingdom
	case FieldSimpleGroup:
		return &f.SimpleGroup
	case FieldDepartment:
		return &f.Department
	case FieldCommune:
		return &f.Commune
	case FieldVernacular:
		return &f.Vernacular
	case FieldStatus:
		return &f.Status
	}
	return nil
}

// Set stores value under field.
func (f *Filters) Set(field Field, value string) error {
	p := f.ref(field)
	if p == nil {
		return fmt.Errorf("unknown filter %q", field)
	}
	*p = value
	return nil
}

// Get returns the value stored under field, "" when unset or unknown.
func (f Filters) Get(field Field) string {
	if p := f.ref(field); p != nil {
		return *p
	}
	return ""
}

// IsEmpty reports whether no field carries a value.
func (f Filters) IsEmpty() bool {
	for _, field := range Fields {
		if strings.TrimSpace(f.Get(field)) != "" {
			return false
		}
	}
	return true
}

// Compile turns the supplied filters into a match specification:
//
//	regne                 equals, case-insensitive
//	groupeTaxoSimple      prefix, case-insensitive
//	codeInseeDepartement  integer equality; unparsable values are dropped
//	commune               prefix, case-insensitive
//	nomVernaculaire       substring, case-insensitive
//	codeStatut            equals, case-insensitive
//
// hasDepartment reports whether a department clause made it into the spec.
func Compile(f Filters, log zerolog.Logger) (spec database.MatchSpec, hasDepartment bool) {
	for _, field := range Fields {
		value := strings.TrimSpace(f.Get(field))
		if value == "" {
			continue
		}

		switch field {
		case FieldKingdom:
			spec.Clauses = append(spec.Clauses, database.Clause{Column: database.ColKingdom, Op: database.OpEqualFold, Value: value})
		case FieldSimpleGroup:
			spec.Clauses = append(spec.Clauses, database.Clause{Column: database.ColSimpleGroup, Op: database.OpPrefixFold, Value: value})
		case FieldDepartment:
			code, err := strconv.Atoi(value)
			if err != nil {
				log.Warn().Str("value", value).Msg("ignoring non-numeric department code")
				continue
			}
			spec.Clauses = append(spec.Clauses, database.Clause{Column: database.ColDepartment, Op: database.OpEquals, Value: code})
		case FieldCommune:
			spec.Clauses = append(spec.Clauses, database.Clause{Column: database.ColCommune, Op: database.OpPrefixFold, Value: value})
		case FieldVernacular:
			spec.Clauses = append(spec.Clauses, database.Clause{Column: database.ColVernacularName, Op: database.OpContainsFold, Value: value})
		case FieldStatus:
			spec.Clauses = append(spec.Clauses, database.Clause{Column: database.ColStatus, Op: database.OpEqualFold, Value: value})
		}
	}
	return spec, spec.Has(database.ColDepartment)
}
