package models

import (
	"time"
)

// Aquarius Publish API v2 response shapes. Field names follow the service's
// JSON so responses decode without translation.

// LocationDescription is one entry of GetLocationDescriptionList
type LocationDescription struct {
	Name               string     `json:"Name"`
	Identifier         string     `json:"Identifier"`
	UniqueID           string     `json:"UniqueId"`
	IsExternalLocation bool       `json:"IsExternalLocation"`
	PrimaryFolder      string     `json:"PrimaryFolder"`
	UtcOffset          *float64   `json:"UtcOffset,omitempty"`
	LastModified       *time.Time `json:"LastModified,omitempty"`
	Tags               []Tag      `json:"Tags,omitempty"`
}

// Tag is a location tag
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// LocationDescriptionListResponse wraps GetLocationDescriptionList
type LocationDescriptionListResponse struct {
	LocationDescriptions []LocationDescription `json:"LocationDescriptions"`
}

// LocationData is the response of GetLocationData for a single location
type LocationData struct {
	LocationName   string   `json:"LocationName"`
	Identifier     string   `json:"Identifier"`
	UniqueID       string   `json:"UniqueId"`
	LocationType   string   `json:"LocationType"`
	Description    string   `json:"Description"`
	Latitude       *float64 `json:"Latitude,omitempty"`
	Longitude      *float64 `json:"Longitude,omitempty"`
	Elevation      *float64 `json:"Elevation,omitempty"`
	ElevationUnits string   `json:"ElevationUnits"`
	UtcOffset      *float64 `json:"UtcOffset,omitempty"`
}

// ParameterMetadata is one entry of GetParameterList
type ParameterMetadata struct {
	Identifier          string `json:"Identifier"`
	DisplayName         string `json:"DisplayName"`
	UnitGroupIdentifier string `json:"UnitGroupIdentifier"`
	UnitIdentifier      string `json:"UnitIdentifier"`
	InterpolationType   string `json:"InterpolationType"`
}

// ParameterListResponse wraps GetParameterList
type ParameterListResponse struct {
	Parameters []ParameterMetadata `json:"Parameters"`
}

// TimeSeriesUniqueID is one entry of GetTimeSeriesUniqueIdList
type TimeSeriesUniqueID struct {
	UniqueID  string `json:"UniqueId"`
	IsDeleted bool   `json:"IsDeleted"`
}

// TimeSeriesUniqueIDListResponse wraps GetTimeSeriesUniqueIdList
type TimeSeriesUniqueIDListResponse struct {
	TimeSeriesUniqueIDs []TimeSeriesUniqueID `json:"TimeSeriesUniqueIds"`
	NextToken           *time.Time           `json:"NextToken,omitempty"`
}

// TimeSeriesDescription is the vendor's metadata for one time series
type TimeSeriesDescription struct {
	Identifier                  string     `json:"Identifier"`
	UniqueID                    string     `json:"UniqueId"`
	LocationIdentifier          string     `json:"LocationIdentifier"`
	Parameter                   string     `json:"Parameter"`
	ParameterID                 string     `json:"ParameterId"`
	Unit                        string     `json:"Unit"`
	UtcOffset                   *float64   `json:"UtcOffset,omitempty"`
	UtcOffsetIsoDuration        string     `json:"UtcOffsetIsoDuration"`
	LastModified                *time.Time `json:"LastModified,omitempty"`
	RawStartTime                *time.Time `json:"RawStartTime,omitempty"`
	RawEndTime                  *time.Time `json:"RawEndTime,omitempty"`
	CorrectedStartTime          *time.Time `json:"CorrectedStartTime,omitempty"`
	CorrectedEndTime            *time.Time `json:"CorrectedEndTime,omitempty"`
	TimeSeriesType              string     `json:"TimeSeriesType"`
	Label                       string     `json:"Label"`
	Comment                     string     `json:"Comment"`
	Description                 string     `json:"Description"`
	Publish                     bool       `json:"Publish"`
	ComputationIdentifier       string     `json:"ComputationIdentifier"`
	ComputationPeriodIdentifier string     `json:"ComputationPeriodIdentifier"`
	SubLocationIdentifier       string     `json:"SubLocationIdentifier"`
}

// TimeSeriesDescriptionListResponse wraps the description list endpoints
type TimeSeriesDescriptionListResponse struct {
	TimeSeriesDescriptions []TimeSeriesDescription `json:"TimeSeriesDescriptions"`
}

// PointValue is a point's value; Numeric is absent for gaps
type PointValue struct {
	Numeric *float64 `json:"Numeric,omitempty"`
	Display string   `json:"Display"`
}

// TimeSeriesPoint is one timestamp/value pair
type TimeSeriesPoint struct {
	Timestamp time.Time  `json:"Timestamp"`
	Value     PointValue `json:"Value"`
}

// TimeSeriesDataResponse is returned by the Raw and Corrected point endpoints.
// Points are ordered oldest first.
type TimeSeriesDataResponse struct {
	UniqueID           string            `json:"UniqueId"`
	Parameter          string            `json:"Parameter"`
	Label              string            `json:"Label"`
	LocationIdentifier string            `json:"LocationIdentifier"`
	Unit               string            `json:"Unit"`
	NumPoints          int               `json:"NumPoints"`
	Points             []TimeSeriesPoint `json:"Points"`
}

// VersionResponse is returned by the version endpoint
type VersionResponse struct {
	APIVersion string `json:"ApiVersion"`
}
