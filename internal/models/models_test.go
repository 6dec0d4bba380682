package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogRecord_Problems(t *testing.T) {
	var r CatalogRecord
	assert.False(t, r.HasProblems())
	assert.Equal(t, "", r.FormatProblems())

	r.AddProblem("TSTool TSID is not unique.")
	r.AddProblem("second")

	assert.True(t, r.HasProblems())
	assert.Equal(t, "TSTool TSID is not unique.; second", r.FormatProblems())
}

func TestCatalogRecord_DataTypeWithStatistic(t *testing.T) {
	tests := []struct {
		name   string
		record CatalogRecord
		want   string
	}{
		{name: "no statistic", record: CatalogRecord{DataType: "Discharge"}, want: "Discharge"},
		{name: "with statistic", record: CatalogRecord{DataType: "Discharge", Statistic: "Max"}, want: "Discharge-Max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.DataTypeWithStatistic())
		})
	}
}

func TestTimeSeriesDescription_DecodeVendorJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		checkValues func(*testing.T, TimeSeriesDescriptionListResponse)
	}{
		{
			name: "seven digit fractional seconds and offsets",
			body: `{"TimeSeriesDescriptions":[{
				"Identifier":"Discharge.Working@06752260",
				"UniqueId":"3a6e4b2c9f1d4e7a8b0c1d2e3f405162",
				"LocationIdentifier":"06752260",
				"Parameter":"Discharge",
				"ParameterId":"QR",
				"Unit":"ft^3/s",
				"UtcOffset":-7.0,
				"UtcOffsetIsoDuration":"-PT7H",
				"RawStartTime":"2019-10-01T00:00:00.0000000-07:00",
				"CorrectedEndTime":"2024-05-01T12:15:00.0000000-07:00",
				"ComputationIdentifier":"Mean",
				"ComputationPeriodIdentifier":"Daily"
			}]}`,
			checkValues: func(t *testing.T, resp TimeSeriesDescriptionListResponse) {
				require.Len(t, resp.TimeSeriesDescriptions, 1)
				d := resp.TimeSeriesDescriptions[0]
				assert.Equal(t, "06752260", d.LocationIdentifier)
				require.NotNil(t, d.UtcOffset)
				assert.Equal(t, -7.0, *d.UtcOffset)
				require.NotNil(t, d.RawStartTime)
				assert.True(t, d.RawStartTime.Equal(time.Date(2019, 10, 1, 7, 0, 0, 0, time.UTC)))
				assert.Nil(t, d.RawEndTime)
				assert.Equal(t, "Daily", d.ComputationPeriodIdentifier)
			},
		},
		{
			name:    "bad timestamp",
			body:    `{"TimeSeriesDescriptions":[{"RawStartTime":"not a time"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp TimeSeriesDescriptionListResponse
			err := json.Unmarshal([]byte(tt.body), &resp)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.checkValues(t, resp)
		})
	}
}

func TestTimeSeriesDataResponse_GapValue(t *testing.T) {
	body := `{"UniqueId":"x","Points":[
		{"Timestamp":"2024-01-01T00:00:00.0000000+00:00","Value":{"Numeric":1.5,"Display":"1.5"}},
		{"Timestamp":"2024-01-01T01:00:00.0000000+00:00","Value":{"Display":""}}
	]}`

	var resp TimeSeriesDataResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Points, 2)
	require.NotNil(t, resp.Points[0].Value.Numeric)
	assert.Equal(t, 1.5, *resp.Points[0].Value.Numeric)
	assert.Nil(t, resp.Points[1].Value.Numeric)
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{Field: "ServiceRootUrl", Message: "ServiceRootUrl is required"}
	assert.Equal(t, "ServiceRootUrl is required", err.Error())
	assert.False(t, err.IsTransient())
}
