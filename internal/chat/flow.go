// Package chat drives the guided-search conversation: it asks one question
// per stage, stores corrected answers as filters and runs the search when
// the last stage is answered.
package chat

import (
	"slices"

	"github.com/TobiSchelling/GuideNaturel/internal/search"
)

// StageResults is the terminal pseudo-stage reached after the last question.
const StageResults = "results"

// Stage is one question of the flow.
type Stage struct {
	ID        string
	Text      string
	Field     search.Field
	Skippable bool
	Next      string
}

// Flow is a fixed linear sequence of stages ending in StageResults.
type Flow struct {
	first        string
	stages       map[string]Stage
	skipKeywords []string
}

// NewFlow builds a flow from stages in order; each stage's Next is derived
// from its position.
func NewFlow(stages []Stage, skipKeywords []string) *Flow {
	f := &Flow{stages: make(map[string]Stage, len(stages)), skipKeywords: skipKeywords}
	for i, s := range stages {
		s.Next = StageResults
		if i+1 < len(stages) {
			s.Next = stages[i+1].ID
		}
		f.stages[s.ID] = s
	}
	if len(stages) > 0 {
		f.first = stages[0].ID
	}
	return f
}

// DefaultFlow is the Bourgogne-Franche-Comté species guide.
func DefaultFlow() *Flow {
	return NewFlow([]Stage{
		{
			ID:        "q_regne",
			Text:      "Commençons ! As-tu un règne que tu veux chercher ? (*Animalia*, *Plantae* ou *Fungi*)",
			Field:     search.FieldKingdom,
			Skippable: true,
		},
		{
			ID:        "q_groupe_taxo",
			Text:      "Quel groupe taxonomique simple t'intéresse ? (Oiseaux, Mammifères, Insectes, Plantes à fleurs...)",
			Field:     search.FieldSimpleGroup,
			Skippable: true,
		},
		{
			ID:        "q2",
			Text:      "Hum, je vois ! Et ce serait dans quel département ? (Le 21, 25, 70, 39, 58, 71, 90, ou 89)",
			Field:     search.FieldDepartment,
			Skippable: true,
		},
		{
			ID:        "q_commune",
			Text:      "Si tu as une commune à spécifier, je suis preneuse ! (ex : Dijon, Besançon...)",
			Field:     search.FieldCommune,
			Skippable: true,
		},
		{
			ID:        "q_nom_vern",
			Text:      "Petite question compliquée : connais-tu le nom commun (ou vernaculaire) de l'espèce recherchée ? Ou une partie du nom ?",
			Field:     search.FieldVernacular,
			Skippable: true,
		},
		{
			ID:        "q_code_statut",
			Text:      "As-tu un code de statut de conservation spécifique en tête ? **DD**, **LC**, **CR**... Tu peux te renseigner sur les différents statuts de conservation qui existent !",
			Field:     search.FieldStatus,
			Skippable: true,
		},
	}, []string{"passer", "skip", "ignorer", "je ne sais pas", "je sais pas", "non"})
}

// First returns the opening stage.
func (f *Flow) First() Stage {
	return f.stages[f.first]
}

// Stage looks up a stage by id.
func (f *Flow) Stage(id string) (Stage, bool) {
	s, ok := f.stages[id]
	return s, ok
}

// IsSkip reports whether a normalized answer declines the stage.
func (f *Flow) IsSkip(s Stage, answer string) bool {
	if !s.Skippable {
		return false
	}
	return answer == "" || slices.Contains(f.skipKeywords, answer)
}
