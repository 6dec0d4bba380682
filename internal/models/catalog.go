package models

import (
	"strings"
	"time"
)

// CatalogRecord is the denormalized entry for one queryable time series,
// merged from the vendor's time series description, location description,
// location data, and parameter metadata.
type CatalogRecord struct {
	// Identity
	LocationID   string `json:"locId"`
	DataSource   string `json:"dataSource"`
	DataType     string `json:"dataType"`
	DataInterval string `json:"dataInterval"`
	Statistic    string `json:"statistic"`
	Scenario     string `json:"scenario"`
	DataUnits    string `json:"dataUnits"`

	// TimeSeriesID is the synthetic identifier; see catalog.FormatTSID.
	TimeSeriesID string `json:"tsid"`

	// Time series description
	Identifier                  string     `json:"timeSeriesIdentifier"`
	UniqueID                    string     `json:"timeSeriesUniqueId"`
	Parameter                   string     `json:"timeSeriesParameter"`
	ParameterID                 string     `json:"timeSeriesParameterId"`
	UtcOffset                   *float64   `json:"timeSeriesUtcOffset,omitempty"`
	UtcOffsetIsoDuration        string     `json:"timeSeriesUtcOffsetIsoDuration,omitempty"`
	LastModified                *time.Time `json:"timeSeriesLastModified,omitempty"`
	RawStartTime                *time.Time `json:"timeSeriesRawStartTime,omitempty"`
	RawEndTime                  *time.Time `json:"timeSeriesRawEndTime,omitempty"`
	CorrectedStartTime          *time.Time `json:"timeSeriesCorrectedStartTime,omitempty"`
	CorrectedEndTime            *time.Time `json:"timeSeriesCorrectedEndTime,omitempty"`
	TimeSeriesType              string     `json:"timeSeriesType"`
	Label                       string     `json:"timeSeriesLabel"`
	Comment                     string     `json:"timeSeriesComment"`
	Description                 string     `json:"timeSeriesDescription"`
	ComputationIdentifier       string     `json:"timeSeriesComputationIdentifier"`
	ComputationPeriodIdentifier string     `json:"timeSeriesComputationPeriodIdentifier"`
	SubLocationIdentifier       string     `json:"timeSeriesSubLocationIdentifier"`

	// Location description
	LocationUniqueID  string   `json:"locationUniqueId"`
	LocationUtcOffset *float64 `json:"locationUtcOffset,omitempty"`
	LocationName      string   `json:"locationName"`

	// Location data
	Elevation      *float64 `json:"locationElevation,omitempty"`
	ElevationUnits string   `json:"locationElevationUnits"`
	Latitude       *float64 `json:"locationLatitude,omitempty"`
	Longitude      *float64 `json:"locationLongitude,omitempty"`

	// Parameter metadata
	ParameterDisplayName string `json:"parameterDisplayName"`
	ParameterIdentifier  string `json:"parameterIdentifier"`

	Problems []string `json:"problems,omitempty"`
}

// AddProblem appends a diagnostic to the record
func (r *CatalogRecord) AddProblem(problem string) {
	r.Problems = append(r.Problems, problem)
}

// HasProblems reports whether any diagnostic was recorded
func (r *CatalogRecord) HasProblems() bool {
	return len(r.Problems) > 0
}

// FormatProblems joins the problems with "; "
func (r *CatalogRecord) FormatProblems() string {
	return strings.Join(r.Problems, "; ")
}

// DataTypeWithStatistic is the data type part of the TSID
func (r *CatalogRecord) DataTypeWithStatistic() string {
	if r.Statistic == "" {
		return r.DataType
	}
	return r.DataType + "-" + r.Statistic
}

// Clone returns a copy of r that shares no slices or pointers with it
func (r CatalogRecord) Clone() CatalogRecord {
	out := r
	out.Problems = append([]string(nil), r.Problems...)
	out.UtcOffset = cloneFloat(r.UtcOffset)
	out.LocationUtcOffset = cloneFloat(r.LocationUtcOffset)
	out.Elevation = cloneFloat(r.Elevation)
	out.Latitude = cloneFloat(r.Latitude)
	out.Longitude = cloneFloat(r.Longitude)
	out.LastModified = cloneTime(r.LastModified)
	out.RawStartTime = cloneTime(r.RawStartTime)
	out.RawEndTime = cloneTime(r.RawEndTime)
	out.CorrectedStartTime = cloneTime(r.CorrectedStartTime)
	out.CorrectedEndTime = cloneTime(r.CorrectedEndTime)
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
