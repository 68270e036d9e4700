package charts

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed display.yaml
var displayYAML []byte

// StatusInfo is how one conservation status is drawn.
type StatusInfo struct {
	Code  string `yaml:"code"`
	Order int    `yaml:"order"`
	Color string `yaml:"color"`
	Label string `yaml:"label"`
}

// Display holds labels, colours and ordering for chart slices.
type Display struct {
	Statuses       []StatusInfo      `yaml:"statuses"`
	OtherStatus    string            `yaml:"other_status"`
	KingdomColors  map[string]string `yaml:"kingdom_colors"`
	DefaultColor   string            `yaml:"default_color"`
	MissingKingdom string            `yaml:"missing_kingdom"`
	KingdomOrder   []string          `yaml:"kingdom_order"`
	GroupPalette   []string          `yaml:"group_palette"`
	MissingGroup   string            `yaml:"missing_group"`

	statusByCode map[string]StatusInfo
}

// DefaultDisplay returns the embedded display metadata.
func DefaultDisplay() *Display {
	d, err := ParseDisplay(displayYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded display metadata is invalid: %v", err))
	}
	return d
}

// ParseDisplay decodes display metadata from YAML.
func ParseDisplay(data []byte) (*Display, error) {
	var d Display
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing display metadata: %w", err)
	}
	if len(d.GroupPalette) == 0 {
		return nil, fmt.Errorf("display metadata needs a group palette")
	}

	d.statusByCode = make(map[string]StatusInfo, len(d.Statuses))
	for _, s := range d.Statuses {
		d.statusByCode[s.Code] = s
	}
	if _, ok := d.statusByCode[d.OtherStatus]; !ok {
		return nil, fmt.Errorf("other_status %q is not a listed status", d.OtherStatus)
	}
	return &d, nil
}

// Status folds a raw status code into its display entry. Missing and
// unlisted codes (DD, NE...) become the "other" entry.
func (d *Display) Status(code string) StatusInfo {
	if s, ok := d.statusByCode[code]; ok {
		return s
	}
	return d.statusByCode[d.OtherStatus]
}

// Kingdom returns the label for a raw kingdom value.
func (d *Display) Kingdom(raw string) string {
	if raw == "" {
		return d.MissingKingdom
	}
	return raw
}

// KingdomColor returns a kingdom label's colour.
func (d *Display) KingdomColor(label string) string {
	if c, ok := d.KingdomColors[label]; ok {
		return c
	}
	return d.DefaultColor
}

// Group returns the label for a raw taxonomic group value.
func (d *Display) Group(raw string) string {
	if raw == "" {
		return d.MissingGroup
	}
	return raw
}

// GroupColor cycles through the palette.
func (d *Display) GroupColor(i int) string {
	return d.GroupPalette[i%len(d.GroupPalette)]
}

// kingdomRank orders kingdoms: preferred ones first, the rest alphabetically.
func (d *Display) kingdomRank(label string) int {
	for i, k := range d.KingdomOrder {
		if k == label {
			return i
		}
	}
	return len(d.KingdomOrder)
}
