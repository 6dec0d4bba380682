package ts

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// ErrNotAllocated is returned when values are set before Allocate.
var ErrNotAllocated = errors.New("time series data space is not allocated")

// Point is one stored value
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// TimeSeries is an irregular time series: values keyed by timestamp, kept in
// time order, plus descriptive metadata and free-form properties.
type TimeSeries struct {
	Identifier   Ident
	Description  string
	Units        string
	MissingValue float64

	// Date1 and Date2 bound the data actually held. The Original fields keep
	// the period that was requested.
	Date1         time.Time
	Date2         time.Time
	Date1Original time.Time
	Date2Original time.Time

	properties map[string]interface{}
	points     []Point
	allocated  bool
}

// New creates an empty time series with NaN as the missing value
func New(id Ident) *TimeSeries {
	return &TimeSeries{
		Identifier:   id,
		MissingValue: math.NaN(),
		properties:   make(map[string]interface{}),
	}
}

// SetProperty sets a named metadata property
func (t *TimeSeries) SetProperty(name string, value interface{}) {
	t.properties[name] = value
}

// Property returns a named property
func (t *TimeSeries) Property(name string) (interface{}, bool) {
	v, ok := t.properties[name]
	return v, ok
}

// Properties returns a copy of all properties
func (t *TimeSeries) Properties() map[string]interface{} {
	out := make(map[string]interface{}, len(t.properties))
	for k, v := range t.properties {
		out[k] = v
	}
	return out
}

// PropertyNames returns property names sorted
func (t *TimeSeries) PropertyNames() []string {
	names := make([]string, 0, len(t.properties))
	for k := range t.properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Allocate prepares data space for the Date1..Date2 period, discarding any
// previous values.
func (t *TimeSeries) Allocate() error {
	if t.Date1.IsZero() || t.Date2.IsZero() {
		return fmt.Errorf("cannot allocate %s: period is not set", t.Identifier)
	}
	if t.Date2.Before(t.Date1) {
		return fmt.Errorf("cannot allocate %s: end %s is before start %s", t.Identifier, t.Date2, t.Date1)
	}
	t.points = t.points[:0]
	t.allocated = true
	return nil
}

// IsAllocated reports whether Allocate succeeded
func (t *TimeSeries) IsAllocated() bool {
	return t.allocated
}

// SetValue stores v at ts, replacing an existing value at the same instant.
// Values outside Date1..Date2 are ignored and reported as false.
func (t *TimeSeries) SetValue(ts time.Time, v float64) (bool, error) {
	if !t.allocated {
		return false, ErrNotAllocated
	}
	if ts.Before(t.Date1) || ts.After(t.Date2) {
		return false, nil
	}

	i := sort.Search(len(t.points), func(i int) bool { return !t.points[i].Time.Before(ts) })
	if i < len(t.points) && t.points[i].Time.Equal(ts) {
		t.points[i].Value = v
		return true, nil
	}
	t.points = append(t.points, Point{})
	copy(t.points[i+1:], t.points[i:])
	t.points[i] = Point{Time: ts, Value: v}
	return true, nil
}

// Value returns the value at ts
func (t *TimeSeries) Value(ts time.Time) (float64, bool) {
	i := sort.Search(len(t.points), func(i int) bool { return !t.points[i].Time.Before(ts) })
	if i < len(t.points) && t.points[i].Time.Equal(ts) {
		return t.points[i].Value, true
	}
	return t.MissingValue, false
}

// Points returns a copy of the stored values in time order
func (t *TimeSeries) Points() []Point {
	out := make([]Point, len(t.points))
	copy(out, t.points)
	return out
}

// Len is the number of stored values
func (t *TimeSeries) Len() int {
	return len(t.points)
}

// IsMissing reports whether v is the missing value
func (t *TimeSeries) IsMissing(v float64) bool {
	if math.IsNaN(t.MissingValue) {
		return math.IsNaN(v)
	}
	return v == t.MissingValue
}
