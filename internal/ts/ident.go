// Package ts holds the time series container and identifier handling that
// the catalog reader populates.
package ts

import (
	"fmt"
	"strings"
)

// Ident is a parsed time series identifier of the form
// Location.Source.Type.Interval[.Scenario][~InputType[~InputName]].
// A Type containing '.' or '-' may be single-quoted.
type Ident struct {
	Location  string
	Source    string
	Type      string
	Interval  string
	Scenario  string
	InputType string
	InputName string
}

// ParseIdent parses a TSID string
func ParseIdent(s string) (Ident, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ident{}, fmt.Errorf("empty time series identifier")
	}

	inputParts := splitUnquoted(s, '~')
	if len(inputParts) > 3 {
		return Ident{}, fmt.Errorf("time series identifier %q has too many '~' parts", s)
	}

	parts := splitUnquoted(inputParts[0], '.')
	if len(parts) < 4 || len(parts) > 5 {
		return Ident{}, fmt.Errorf("time series identifier %q must have 4 or 5 '.'-separated parts, found %d", s, len(parts))
	}
	if strings.Count(inputParts[0], "'")%2 != 0 {
		return Ident{}, fmt.Errorf("time series identifier %q has an unbalanced quote", s)
	}

	id := Ident{
		Location: parts[0],
		Source:   parts[1],
		Type:     parts[2],
		Interval: parts[3],
	}
	if len(parts) == 5 {
		id.Scenario = parts[4]
	}
	if len(inputParts) > 1 {
		id.InputType = inputParts[1]
	}
	if len(inputParts) > 2 {
		id.InputName = inputParts[2]
	}

	if id.Location == "" || id.Type == "" || id.Interval == "" {
		return Ident{}, fmt.Errorf("time series identifier %q requires location, data type, and interval", s)
	}

	return id, nil
}

// String formats the identifier including input parts
func (id Ident) String() string {
	var b strings.Builder
	b.WriteString(id.AliasFree())
	if id.InputType != "" || id.InputName != "" {
		b.WriteString("~")
		b.WriteString(id.InputType)
	}
	if id.InputName != "" {
		b.WriteString("~")
		b.WriteString(id.InputName)
	}
	return b.String()
}

// AliasFree formats the identifier without input type and name
func (id Ident) AliasFree() string {
	s := id.Location + "." + id.Source + "." + id.Type + "." + id.Interval
	if id.Scenario != "" {
		s += "." + id.Scenario
	}
	return s
}

// Key is the identifier with quotes removed from the data type and no input
// parts, the form stored as the catalog's synthetic identifier.
func (id Ident) Key() string {
	s := id.Location + "." + id.Source + "." + strings.ReplaceAll(id.Type, "'", "") + "." + id.Interval
	if id.Scenario != "" {
		s += "." + id.Scenario
	}
	return s
}

// WithInterval returns a copy using interval
func (id Ident) WithInterval(interval string) Ident {
	id.Interval = interval
	return id
}

// QuoteType quotes a data type that would otherwise split a TSID.
func QuoteType(dataType string) string {
	if strings.ContainsAny(dataType, ".-") {
		return "'" + dataType + "'"
	}
	return dataType
}

func splitUnquoted(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
