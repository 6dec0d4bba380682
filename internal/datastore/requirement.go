package datastore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// RequirementCheck is the outcome of one @require line
type RequirementCheck struct {
	Requirement string `json:"requirement"`
	Met         bool   `json:"met"`
	Message     string `json:"message"`
}

// CheckRequirement evaluates requirements of the forms
//
//	@require datastore <name> version >= 20.1.0
//	@require datastore <name> configuration system_id == <value>
//
// The leading annotation may be @require or @enabledif.
func (d *AquariusDataStore) CheckRequirement(ctx context.Context, requirement string) RequirementCheck {
	check := RequirementCheck{Requirement: requirement}
	parts := strings.Fields(requirement)

	annotation := "@require"
	if len(parts) > 0 {
		annotation = parts[0]
	}

	nameNote := ""
	if len(parts) > 2 && parts[2] != d.cfg.Name {
		nameNote = fmt.Sprintf(" (requirement datastore %q is served by %q)", parts[2], d.cfg.Name)
	}

	if len(parts) < 4 {
		check.Message = fmt.Sprintf("Requirement does not contain check type as one of: version, configuration, for example: %s datastore %s version...", annotation, d.cfg.Name)
		return check
	}

	switch checkType := parts[3]; strings.ToLower(checkType) {
	case "configuration":
		if len(parts) < 5 {
			check.Message = "Configuration requirement does not name a property."
			return check
		}
		property := parts[4]
		if property != "system_id" {
			check.Message = fmt.Sprintf("Check type '%s' configuration property '%s' is not supported.", checkType, property)
			return check
		}
		if len(parts) < 7 || parts[6] == "" {
			check.Message = "'system_id' value to check is not specified in the requirement." + nameNote
			return check
		}
		// Aquarius does not publish a system id
		check.Message = "Aquarius configuration 'system_id' value is not defined in the database." + nameNote
		return check

	case "version":
		if len(parts) < 6 {
			check.Message = "Version requirement needs an operator and a version, for example: version >= 20.1.0"
			return check
		}
		operator, want := parts[4], parts[5]

		version, err := d.version(ctx)
		if err != nil || version == "" {
			check.Message = "Web service version is unknown (services are down or software problem)."
			return check
		}

		met, err := CompareVersions(version, operator, want, 3)
		if err != nil {
			check.Message = err.Error()
			return check
		}
		check.Met = met
		if met {
			check.Message = fmt.Sprintf("%s web service version (%s) does meet requirement: %s %s%s", annotation, version, operator, want, nameNote)
		} else {
			check.Message = fmt.Sprintf("%s web service version (%s) does not meet requirement: %s %s%s", annotation, version, operator, want, nameNote)
		}
		return check

	default:
		check.Message = fmt.Sprintf("Requirement check type '%s' is unknown.", checkType)
		return check
	}
}

// CompareVersions compares the first parts dot-separated numeric fields of
// have and want with operator (==, !=, <, <=, >, >=). Missing fields count
// as zero.
func CompareVersions(have, operator, want string, parts int) (bool, error) {
	a, err := versionFields(have, parts)
	if err != nil {
		return false, err
	}
	b, err := versionFields(want, parts)
	if err != nil {
		return false, err
	}

	cmp := 0
	for i := 0; i < parts; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				cmp = -1
			} else {
				cmp = 1
			}
			break
		}
	}

	switch operator {
	case "==", "=":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("unknown version operator %q", operator)
	}
}

func versionFields(version string, parts int) ([]int, error) {
	fields := strings.Split(strings.TrimPrefix(strings.TrimSpace(version), "v"), ".")
	out := make([]int, parts)
	for i := 0; i < parts && i < len(fields); i++ {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("version %q is not numeric", version)
		}
		out[i] = n
	}
	return out, nil
}
