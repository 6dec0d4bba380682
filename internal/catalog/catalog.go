package catalog

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"aquarius-catalog/internal/models"
	"aquarius-catalog/internal/ts"
)

// Wildcard matches any value in a filter and is offered in choice lists.
const Wildcard = "*"

// Catalog is an immutable snapshot of catalog records plus the location list
// they were built against. Methods return copies; callers never see the
// snapshot change.
type Catalog struct {
	records   []models.CatalogRecord
	locations []models.LocationDescription
	byTSID    map[string][]int
	builtAt   time.Time
}

// New creates a snapshot. Locations are sorted by identifier.
func New(records []models.CatalogRecord, locations []models.LocationDescription, builtAt time.Time) *Catalog {
	c := &Catalog{
		records:   cloneRecords(records),
		locations: append([]models.LocationDescription(nil), locations...),
		byTSID:    make(map[string][]int, len(records)),
		builtAt:   builtAt,
	}
	SortLocationDescriptions(c.locations)
	for i := range c.records {
		c.byTSID[c.records[i].TimeSeriesID] = append(c.byTSID[c.records[i].TimeSeriesID], i)
	}
	return c
}

// Empty returns the catalog of a session that could not read global data
func Empty() *Catalog {
	return New(nil, nil, time.Time{})
}

// Len is the number of records
func (c *Catalog) Len() int { return len(c.records) }

// BuiltAt is when the snapshot was built; zero for Empty
func (c *Catalog) BuiltAt() time.Time { return c.builtAt }

// Records returns a copy of all records
func (c *Catalog) Records() []models.CatalogRecord {
	return cloneRecords(c.records)
}

func cloneRecords(records []models.CatalogRecord) []models.CatalogRecord {
	if records == nil {
		return nil
	}
	out := make([]models.CatalogRecord, len(records))
	for i := range records {
		out[i] = records[i].Clone()
	}
	return out
}

// Locations returns the full known location list, sorted by identifier
func (c *Catalog) Locations() []models.LocationDescription {
	return append([]models.LocationDescription(nil), c.locations...)
}

// DuplicateCount is the number of records sharing an identifier
func (c *Catalog) DuplicateCount() int {
	n := 0
	for _, idx := range c.byTSID {
		if len(idx) > 1 {
			n += len(idx)
		}
	}
	return n
}

// ProblemCount is the number of records with at least one problem
func (c *Catalog) ProblemCount() int {
	n := 0
	for i := range c.records {
		if c.records[i].HasProblems() {
			n++
		}
	}
	return n
}

// DataTypes returns the distinct data types sorted case-insensitively,
// bracketed by the wildcard when includeWildcard is set.
func (c *Catalog) DataTypes(includeWildcard bool) []string {
	types, _ := c.dataTypeCounts()
	if includeWildcard {
		types = append(append([]string{Wildcard}, types...), Wildcard)
	}
	return types
}

// DataTypeChoices is DataTypes annotated for display as "type - count"
func (c *Catalog) DataTypeChoices(includeWildcard bool) []string {
	types, counts := c.dataTypeCounts()
	choices := make([]string, 0, len(types)+2)
	if includeWildcard {
		choices = append(choices, Wildcard)
	}
	for _, t := range types {
		choices = append(choices, t+" - "+strconv.Itoa(counts[t]))
	}
	if includeWildcard {
		choices = append(choices, Wildcard)
	}
	return choices
}

func (c *Catalog) dataTypeCounts() ([]string, map[string]int) {
	counts := make(map[string]int)
	var types []string
	for i := range c.records {
		dt := c.records[i].DataType
		if _, seen := counts[dt]; !seen {
			types = append(types, dt)
		}
		counts[dt]++
	}
	sortFold(types)
	return types, counts
}

// DataIntervals returns the distinct intervals of records matching dataType
// (empty or wildcard for all), sorted case-insensitively. With includeWildcard
// the wildcard is appended, and also prepended when more than one interval
// is listed.
func (c *Catalog) DataIntervals(dataType string, includeWildcard bool) []string {
	dataType = StripCount(dataType)
	seen := make(map[string]bool)
	var intervals []string
	for i := range c.records {
		r := &c.records[i]
		if !matchesValue(dataType, r.DataType) {
			continue
		}
		if !seen[r.DataInterval] {
			seen[r.DataInterval] = true
			intervals = append(intervals, r.DataInterval)
		}
	}
	sortFold(intervals)
	if includeWildcard {
		if len(intervals) > 1 {
			intervals = append([]string{Wildcard}, intervals...)
		}
		intervals = append(intervals, Wildcard)
	}
	return intervals
}

// MatchingLocations lists locations for the type/interval filters. When
// either filter is concrete, locations of matching records are unioned with
// the full location list; otherwise the full list is returned. The result is
// sorted by identifier.
func (c *Catalog) MatchingLocations(dataType, interval string) []models.LocationDescription {
	dataType = StripCount(dataType)
	if !isConcrete(dataType) && !isConcrete(interval) {
		return c.Locations()
	}

	result := c.Locations()
	known := make(map[string]bool, len(result))
	for _, loc := range result {
		known[loc.Identifier] = true
	}
	for i := range c.records {
		r := &c.records[i]
		if !matchesValue(dataType, r.DataType) || !matchesFold(interval, r.DataInterval) {
			continue
		}
		if !known[r.LocationID] {
			known[r.LocationID] = true
			result = append(result, models.LocationDescription{
				Identifier: r.LocationID,
				Name:       r.LocationName,
				UniqueID:   r.LocationUniqueID,
			})
		}
	}
	SortLocationDescriptions(result)
	return result
}

// LocationChoices formats MatchingLocations as "id - name"
func (c *Catalog) LocationChoices(dataType, interval string) []string {
	locations := c.MatchingLocations(dataType, interval)
	choices := make([]string, 0, len(locations))
	for _, loc := range locations {
		if loc.Name == "" {
			choices = append(choices, loc.Identifier)
			continue
		}
		choices = append(choices, loc.Identifier+" - "+loc.Name)
	}
	return choices
}

// FindByIdentifier returns every record with the location and data type,
// comparing interval case-insensitively. Callers needing one series must
// treat any count other than one as failure.
func (c *Catalog) FindByIdentifier(locationID, dataType, interval string) []models.CatalogRecord {
	var found []models.CatalogRecord
	for i := range c.records {
		r := &c.records[i]
		if r.LocationID == locationID && r.DataType == dataType && strings.EqualFold(r.DataInterval, interval) {
			found = append(found, r.Clone())
		}
	}
	return found
}

// Find resolves a parsed identifier against the synthetic identifiers, so
// statistic and scenario take part in the match.
func (c *Catalog) Find(id ts.Ident) []models.CatalogRecord {
	var found []models.CatalogRecord
	for _, i := range c.byTSID[id.Key()] {
		found = append(found, c.records[i].Clone())
	}
	if len(found) > 0 {
		return found
	}

	// Slow path: interval and source are matched ignoring case.
	dataType := strings.ReplaceAll(id.Type, "'", "")
	for i := range c.records {
		r := &c.records[i]
		if r.LocationID == id.Location &&
			strings.EqualFold(r.DataSource, id.Source) &&
			r.DataTypeWithStatistic() == dataType &&
			strings.EqualFold(r.DataInterval, id.Interval) &&
			r.Scenario == id.Scenario {
			found = append(found, r.Clone())
		}
	}
	return found
}

// Query is a filter over the catalog used for listings
type Query struct {
	DataType string
	Interval string
	Location *Condition
}

// Select returns records matching q, in catalog order
func (c *Catalog) Select(q Query) []models.CatalogRecord {
	dataType := StripCount(q.DataType)
	var out []models.CatalogRecord
	for i := range c.records {
		r := &c.records[i]
		if !matchesValue(dataType, r.DataType) || !matchesFold(q.Interval, r.DataInterval) {
			continue
		}
		if q.Location != nil && !q.Location.Matches(r.LocationID) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// StripCount removes a trailing " - N" count annotation from a choice value
func StripCount(choice string) string {
	i := strings.LastIndex(choice, " - ")
	if i <= 0 {
		return choice
	}
	if _, err := strconv.Atoi(choice[i+3:]); err != nil {
		return choice
	}
	return choice[:i]
}

// SortLocationDescriptions sorts by identifier
func SortLocationDescriptions(locations []models.LocationDescription) {
	sort.SliceStable(locations, func(i, j int) bool {
		return locations[i].Identifier < locations[j].Identifier
	})
}

// SortTimeSeriesDescriptions sorts by location identifier, then parameter id
func SortTimeSeriesDescriptions(descriptions []models.TimeSeriesDescription) {
	sort.SliceStable(descriptions, func(i, j int) bool {
		a, b := descriptions[i], descriptions[j]
		if a.LocationIdentifier != b.LocationIdentifier {
			return a.LocationIdentifier < b.LocationIdentifier
		}
		return a.ParameterID < b.ParameterID
	})
}

func isConcrete(filter string) bool {
	return filter != "" && filter != Wildcard
}

func matchesValue(filter, value string) bool {
	return !isConcrete(filter) || filter == value
}

func matchesFold(filter, value string) bool {
	return !isConcrete(filter) || strings.EqualFold(filter, value)
}

func sortFold(values []string) {
	sort.SliceStable(values, func(i, j int) bool {
		a, b := strings.ToLower(values[i]), strings.ToLower(values[j])
		if a != b {
			return a < b
		}
		return values[i] < values[j]
	})
}
