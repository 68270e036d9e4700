package database

import (
	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// foldColumns maps each case-insensitively matched column to its shadow
// column holding the Unicode case-folded value.
var foldColumns = map[Column]Column{
	ColKingdom:        "kingdom_fold",
	ColSimpleGroup:    "simple_group_fold",
	ColCommune:        "commune_fold",
	ColVernacularName: "vernacular_name_fold",
	ColStatus:         "status_code_fold",
}

// Fold returns the full Unicode case folding of s, so "Écureuil" and
// "écureuil" compare equal on every backend.
func Fold(s string) string {
	return cases.Fold().String(s)
}

func foldPtr(s *string) string {
	if s == nil {
		return ""
	}
	return Fold(*s)
}

// fillFolds recomputes the shadow columns from the displayed values.
func (o *Observation) fillFolds() {
	o.KingdomFold = Fold(o.Kingdom)
	o.SimpleGroupFold = Fold(o.SimpleGroup)
	o.CommuneFold = Fold(o.Commune)
	o.VernacularNameFold = foldPtr(o.VernacularName)
	o.StatusCodeFold = foldPtr(o.StatusCode)
}

// BeforeSave keeps the folded columns in step with every insert or update.
func (o *Observation) BeforeSave(*gorm.DB) error {
	o.fillFolds()
	return nil
}
