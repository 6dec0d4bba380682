// Package catalog merges the vendor's independently keyed lists into one
// record per time series and answers the choice-list and identifier queries
// made against the merged catalog.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"aquarius-catalog/internal/models"
	"aquarius-catalog/pkg/logging"
)

const (
	// DataSource is the source part of every synthetic identifier.
	DataSource = "Aquarius"

	// IrregularInterval is used when the vendor reports no fixed cadence.
	IrregularInterval = "IrregSecond"

	// HistoricalMarker in a vendor identifier tags the series as historical.
	HistoricalMarker   = ".Historical."
	HistoricalScenario = "Historical"

	// DuplicateTSIDProblem is recorded on every record sharing an identifier.
	DuplicateTSIDProblem = "TSTool TSID is not unique."

	unknownCode = "Unknown"
)

var computationPeriodIntervals = map[string]string{
	"Daily":   "Day",
	"Hourly":  "Hour",
	"Monthly": "Month",
	"Annual":  "Year",
}

// Inputs are the global vendor lists a catalog is built from. Any of them may
// be empty.
type Inputs struct {
	TimeSeriesDescriptions []models.TimeSeriesDescription
	LocationDescriptions   []models.LocationDescription
	LocationData           []models.LocationData
	Parameters             []models.ParameterMetadata
}

// Builder turns Inputs into catalog records
type Builder struct {
	logger *logging.StructuredLogger
}

// NewBuilder creates a new catalog builder
func NewBuilder(logger *logging.StructuredLogger) *Builder {
	return &Builder{logger: logger}
}

// Build creates one record per time series description, joins location and
// parameter metadata onto it, assigns the synthetic identifier, and flags
// records whose identifier is shared. Build never fails; lookup misses leave
// fields empty.
func (b *Builder) Build(ctx context.Context, in Inputs) []models.CatalogRecord {
	if len(in.TimeSeriesDescriptions) == 0 {
		b.logger.Info(ctx, "[CATALOG_BUILD_EMPTY] No time series descriptions, catalog is empty", logging.Fields{})
		return []models.CatalogRecord{}
	}

	// First match wins for every lookup.
	locationDescriptions := make(map[string]*models.LocationDescription, len(in.LocationDescriptions))
	for i := range in.LocationDescriptions {
		id := in.LocationDescriptions[i].Identifier
		if _, ok := locationDescriptions[id]; !ok {
			locationDescriptions[id] = &in.LocationDescriptions[i]
		}
	}
	locationData := make(map[string]*models.LocationData, len(in.LocationData))
	for i := range in.LocationData {
		id := in.LocationData[i].Identifier
		if _, ok := locationData[id]; !ok {
			locationData[id] = &in.LocationData[i]
		}
	}
	parameters := make(map[string]*models.ParameterMetadata, len(in.Parameters))
	for i := range in.Parameters {
		id := in.Parameters[i].Identifier
		if _, ok := parameters[id]; !ok {
			parameters[id] = &in.Parameters[i]
		}
	}

	records := make([]models.CatalogRecord, 0, len(in.TimeSeriesDescriptions))
	for _, desc := range in.TimeSeriesDescriptions {
		record := recordFromDescription(desc)

		if loc, ok := locationDescriptions[desc.LocationIdentifier]; ok {
			record.LocationName = loc.Name
			record.LocationUniqueID = loc.UniqueID
			record.LocationUtcOffset = loc.UtcOffset
		} else {
			b.logger.Debug(ctx, "[CATALOG_LOOKUP_MISS] No location description for time series", logging.Fields{
				"location_identifier": desc.LocationIdentifier,
				"unique_id":           desc.UniqueID,
			})
		}

		if data, ok := locationData[desc.LocationIdentifier]; ok {
			record.Elevation = data.Elevation
			record.ElevationUnits = data.ElevationUnits
			record.Latitude = data.Latitude
			record.Longitude = data.Longitude
		} else {
			b.logger.Debug(ctx, "[CATALOG_LOOKUP_MISS] No location data for time series", logging.Fields{
				"location_identifier": desc.LocationIdentifier,
				"unique_id":           desc.UniqueID,
			})
		}

		if param, ok := parameters[desc.Parameter]; ok {
			record.ParameterDisplayName = param.DisplayName
			record.ParameterIdentifier = param.Identifier
		} else {
			b.logger.Debug(ctx, "[CATALOG_LOOKUP_MISS] No parameter metadata for time series", logging.Fields{
				"parameter": desc.Parameter,
				"unique_id": desc.UniqueID,
			})
		}

		record.TimeSeriesID = FormatTSID(record.LocationID, record.DataType, record.Statistic, record.DataInterval, record.Scenario)
		records = append(records, record)
	}

	duplicates := MarkDuplicates(records)

	b.logger.Info(ctx, "[CATALOG_BUILD_COMPLETE] Catalog built", logging.Fields{
		"records":           len(records),
		"duplicate_records": duplicates,
		"location_count":    len(in.LocationDescriptions),
		"location_data":     len(in.LocationData),
		"parameter_count":   len(in.Parameters),
	})

	return records
}

func recordFromDescription(desc models.TimeSeriesDescription) models.CatalogRecord {
	record := models.CatalogRecord{
		LocationID:                  desc.LocationIdentifier,
		DataSource:                  DataSource,
		DataType:                    desc.Parameter,
		DataUnits:                   desc.Unit,
		Identifier:                  desc.Identifier,
		UniqueID:                    desc.UniqueID,
		Parameter:                   desc.Parameter,
		ParameterID:                 desc.ParameterID,
		UtcOffset:                   desc.UtcOffset,
		UtcOffsetIsoDuration:        desc.UtcOffsetIsoDuration,
		LastModified:                desc.LastModified,
		RawStartTime:                desc.RawStartTime,
		RawEndTime:                  desc.RawEndTime,
		CorrectedStartTime:          desc.CorrectedStartTime,
		CorrectedEndTime:            desc.CorrectedEndTime,
		TimeSeriesType:              desc.TimeSeriesType,
		Label:                       desc.Label,
		Comment:                     desc.Comment,
		Description:                 desc.Description,
		ComputationIdentifier:       desc.ComputationIdentifier,
		ComputationPeriodIdentifier: desc.ComputationPeriodIdentifier,
		SubLocationIdentifier:       desc.SubLocationIdentifier,
		Statistic:                   StatisticFor(desc.ComputationIdentifier),
		Scenario:                    ScenarioFor(desc.Identifier),
	}

	interval, ok := IntervalFor(desc.ComputationPeriodIdentifier)
	if !ok {
		record.AddProblem(fmt.Sprintf("Unrecognized computation period identifier %q (using %s).",
			desc.ComputationPeriodIdentifier, IrregularInterval))
	}
	record.DataInterval = interval

	return record
}

// StatisticFor maps a computation identifier to the statistic used in the TSID
func StatisticFor(computationIdentifier string) string {
	if computationIdentifier == "" || computationIdentifier == unknownCode {
		return ""
	}
	return computationIdentifier
}

// IntervalFor maps a computation period identifier to an interval. Unmapped
// codes fall back to the irregular interval and report false.
func IntervalFor(computationPeriodIdentifier string) (string, bool) {
	if computationPeriodIdentifier == "" || computationPeriodIdentifier == unknownCode {
		return IrregularInterval, true
	}
	if interval, ok := computationPeriodIntervals[computationPeriodIdentifier]; ok {
		return interval, true
	}
	return IrregularInterval, false
}

// ScenarioFor returns the scenario implied by a vendor identifier
func ScenarioFor(identifier string) string {
	if strings.Contains(identifier, HistoricalMarker) {
		return HistoricalScenario
	}
	return ""
}

// FormatTSID builds the synthetic identifier
// locId.Aquarius.dataType[-statistic].interval[.scenario]
func FormatTSID(locationID, dataType, statistic, interval, scenario string) string {
	var b strings.Builder
	b.WriteString(locationID)
	b.WriteString(".")
	b.WriteString(DataSource)
	b.WriteString(".")
	b.WriteString(dataType)
	if statistic != "" {
		b.WriteString("-")
		b.WriteString(statistic)
	}
	b.WriteString(".")
	b.WriteString(interval)
	if scenario != "" {
		b.WriteString(".")
		b.WriteString(scenario)
	}
	return b.String()
}

// MarkDuplicates adds DuplicateTSIDProblem once to every record whose
// identifier is shared with another record, and returns how many records
// were marked. Records are never removed or merged.
func MarkDuplicates(records []models.CatalogRecord) int {
	byTSID := make(map[string][]int, len(records))
	for i := range records {
		byTSID[records[i].TimeSeriesID] = append(byTSID[records[i].TimeSeriesID], i)
	}

	marked := 0
	for _, indexes := range byTSID {
		if len(indexes) < 2 {
			continue
		}
		for _, i := range indexes {
			records[i].AddProblem(DuplicateTSIDProblem)
			marked++
		}
	}
	return marked
}
