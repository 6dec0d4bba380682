package catalog

import (
	"fmt"
	"strings"

	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/ts"
)

// String filter operators offered for location identifiers
const (
	OperatorMatches    = "Matches"
	OperatorContains   = "Contains"
	OperatorStartsWith = "StartsWith"
	OperatorEndsWith   = "EndsWith"
)

// NoInputFiltersNote is shown when the catalog has nothing to filter on
const NoInputFiltersNote = "No input filters available"

// InputFilter describes one named filter and its candidate values
type InputFilter struct {
	Label     string   `json:"label"`
	WhereName string   `json:"where"`
	Operators []string `json:"operators"`
	Choices   []string `json:"choices"`
}

// FilterSet is the set of filters a catalog offers
type FilterSet struct {
	Filters []InputFilter `json:"filters"`
	Note    string        `json:"note,omitempty"`
}

// InputFilters returns the location filter populated with the distinct
// location identifiers, or no filters and a note for an empty catalog.
func (c *Catalog) InputFilters() FilterSet {
	if len(c.records) == 0 {
		return FilterSet{Filters: []InputFilter{}, Note: NoInputFiltersNote}
	}

	seen := make(map[string]bool)
	var ids []string
	for i := range c.records {
		id := c.records[i].LocationID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sortFold(ids)

	return FilterSet{
		Filters: []InputFilter{{
			Label:     "Location - ID",
			WhereName: "locId",
			Operators: []string{OperatorMatches, OperatorContains, OperatorStartsWith, OperatorEndsWith},
			Choices:   ids,
		}},
	}
}

// Condition is one input filter applied to a value
type Condition struct {
	Operator string
	Value    string
}

// ParseCondition validates operator; an empty operator means Matches
func ParseCondition(operator, value string) (*Condition, error) {
	if operator == "" {
		operator = OperatorMatches
	}
	for _, op := range []string{OperatorMatches, OperatorContains, OperatorStartsWith, OperatorEndsWith} {
		if strings.EqualFold(op, operator) {
			return &Condition{Operator: op, Value: value}, nil
		}
	}
	return nil, &models.ValidationError{
		Field:   "operator",
		Value:   operator,
		Message: fmt.Sprintf("unsupported filter operator %q", operator),
	}
}

// Matches compares case-insensitively
func (c *Condition) Matches(value string) bool {
	v, want := strings.ToLower(value), strings.ToLower(c.Value)
	switch c.Operator {
	case OperatorContains:
		return strings.Contains(v, want)
	case OperatorStartsWith:
		return strings.HasPrefix(v, want)
	case OperatorEndsWith:
		return strings.HasSuffix(v, want)
	default:
		return v == want
	}
}

// Row is a display row for catalog listings
type Row struct {
	TSID         string `json:"tsid"`
	LocationID   string `json:"locId"`
	LocationName string `json:"locationName"`
	DataSource   string `json:"dataSource"`
	DataType     string `json:"dataType"`
	Statistic    string `json:"statistic"`
	Interval     string `json:"interval"`
	Scenario     string `json:"scenario"`
	Units        string `json:"units"`
	UniqueID     string `json:"uniqueId"`
	Label        string `json:"label"`
	Problems     string `json:"problems"`
}

// Rows converts records into rows whose TSID can be passed back to a read,
// quoting data types that would otherwise split the identifier.
func Rows(records []models.CatalogRecord) []Row {
	rows := make([]Row, 0, len(records))
	for i := range records {
		r := &records[i]
		dataType := ts.QuoteType(r.DataType)
		if r.Statistic != "" {
			dataType += "-" + r.Statistic
		}
		id := ts.Ident{
			Location: r.LocationID,
			Source:   r.DataSource,
			Type:     dataType,
			Interval: r.DataInterval,
			Scenario: r.Scenario,
		}
		rows = append(rows, Row{
			TSID:         id.AliasFree(),
			LocationID:   r.LocationID,
			LocationName: r.LocationName,
			DataSource:   r.DataSource,
			DataType:     r.DataType,
			Statistic:    r.Statistic,
			Interval:     r.DataInterval,
			Scenario:     r.Scenario,
			Units:        r.DataUnits,
			UniqueID:     r.UniqueID,
			Label:        r.Label,
			Problems:     r.FormatProblems(),
		})
	}
	return rows
}
