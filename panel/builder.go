package panel

import (
	"fmt"
	"sort"
	"strings"
)

/*
Schema describes where the fields of an observation are found on a tabular
source (CSV file, SQL table).

Characteristics lists the characteristic columns explicitly. When empty,
every column whose name starts with CharacteristicPrefix is taken as a
characteristic, in the order the source lists them. LossWeightColumn is
optional: when empty every observation gets a loss weight of 1.
*/
type Schema struct {
	MonthColumn          string   `yaml:"month"`
	AssetColumn          string   `yaml:"asset"`
	ReturnColumn         string   `yaml:"return"`
	WeightColumn         string   `yaml:"weight"`
	LossWeightColumn     string   `yaml:"loss_weight"`
	Characteristics      []string `yaml:"characteristics"`
	CharacteristicPrefix string   `yaml:"characteristic_prefix"`
}

/*
DefaultSchema returns the schema of the panels exported by the data
preparation stage: month in "date", asset in "permno", excess return in
"xret", lagged market equity in "lag_me" and ranked characteristics in the
"rank_*" columns.
*/
func DefaultSchema() Schema {
	return Schema{
		MonthColumn:          "date",
		AssetColumn:          "permno",
		ReturnColumn:         "xret",
		WeightColumn:         "lag_me",
		CharacteristicPrefix: "rank_",
	}
}

/*
CharacteristicColumns takes the column names available on a source and
returns the characteristic columns according to the schema, or an error if an
explicitly listed characteristic is missing or none can be found.
*/
func (s Schema) CharacteristicColumns(columns []string) ([]string, error) {
	available := make(map[string]bool, len(columns))
	for _, c := range columns {
		available[c] = true
	}
	for _, c := range []string{s.MonthColumn, s.AssetColumn, s.ReturnColumn, s.WeightColumn} {
		if !available[c] {
			return nil, ShapeErrorf("required column %q not found", c)
		}
	}
	if s.LossWeightColumn != "" && !available[s.LossWeightColumn] {
		return nil, ShapeErrorf("loss weight column %q not found", s.LossWeightColumn)
	}
	if len(s.Characteristics) > 0 {
		for _, c := range s.Characteristics {
			if !available[c] {
				return nil, ShapeErrorf("characteristic column %q not found", c)
			}
		}
		return s.Characteristics, nil
	}
	var result []string
	for _, c := range columns {
		if s.CharacteristicPrefix != "" && strings.HasPrefix(c, s.CharacteristicPrefix) {
			result = append(result, c)
		}
	}
	if len(result) == 0 {
		return nil, ShapeErrorf("no characteristic columns with prefix %q", s.CharacteristicPrefix)
	}
	return result, nil
}

/*
Builder accumulates observations in any order and builds a Panel with
its months sorted by ID.
*/
type Builder struct {
	characteristics []string
	months          map[string]*Month
}

// NewBuilder returns a Builder for observations with the given characteristics.
func NewBuilder(characteristics []string) *Builder {
	return &Builder{characteristics: characteristics, months: make(map[string]*Month)}
}

/*
Add takes the month ID and an observation and adds the observation to that
month's cross-section. It returns an *InputShapeError if the characteristic
vector does not have the builder's length.
*/
func (b *Builder) Add(month string, o Observation) error {
	if len(o.Characteristics) != len(b.characteristics) {
		return &InputShapeError{Month: month, Asset: o.Asset, Reason: fmt.Sprintf("%d characteristics, expected %d", len(o.Characteristics), len(b.characteristics))}
	}
	m, ok := b.months[month]
	if !ok {
		m = &Month{ID: month}
		b.months[month] = m
	}
	m.Observations = append(m.Observations, o)
	return nil
}

/*
Panel returns the panel with the added observations, or an error if it does
not pass validation.
*/
func (b *Builder) Panel() (*Panel, error) {
	ids := make([]string, 0, len(b.months))
	for id := range b.months {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	p := &Panel{Characteristics: b.characteristics, Months: make([]Month, 0, len(ids))}
	for _, id := range ids {
		p.Months = append(p.Months, *b.months[id])
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
