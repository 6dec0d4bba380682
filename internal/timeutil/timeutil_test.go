package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToZoned(t *testing.T) {
	instant := time.Date(2024, 7, 1, 18, 30, 15, 123456789, time.UTC)

	tests := []struct {
		name     string
		zone     string
		wantHour int
		wantErr  bool
	}{
		{name: "default utc", zone: "", wantHour: 18},
		{name: "denver summer", zone: "America/Denver", wantHour: 12},
		{name: "fixed offset", zone: "-07:00", wantHour: 11},
		{name: "invalid zone", zone: "Not/AZone", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToZoned(instant, tt.zone)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHour, got.Hour())
			assert.True(t, got.Equal(instant.Truncate(time.Millisecond)))
			assert.Equal(t, 123000000, got.Nanosecond())
		})
	}
}

func TestToEpochSeconds(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	naive := Naive(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	got, err := ToEpochSeconds(naive, "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC).Unix(), got)

	got, err = ToEpochSeconds(naive, "America/Denver")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, denver).Unix(), got)

	got, err = ToEpochSeconds(naive, "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local).Unix(), got)

	// An attached zone wins over the fallback argument.
	zoned := Zoned(time.Date(2024, 1, 15, 0, 0, 0, 0, denver))
	got, err = ToEpochSeconds(zoned, "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 7, 0, 0, 0, time.UTC).Unix(), got)

	_, err = ToEpochSeconds(naive, "Bogus/Zone")
	assert.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantZone bool
		wantWall string
		wantErr  bool
	}{
		{name: "date only", in: "2024-03-01", wantWall: "2024-03-01 00:00:00"},
		{name: "minute", in: "2024-03-01 06:30", wantWall: "2024-03-01 06:30:00"},
		{name: "iso local", in: "2024-03-01T06:30:10", wantWall: "2024-03-01 06:30:10"},
		{name: "rfc3339", in: "2024-03-01T06:30:00-07:00", wantZone: true, wantWall: "2024-03-01 06:30:00"},
		{name: "trailing zone", in: "2024-03-01 06:30 America/Denver", wantZone: true, wantWall: "2024-03-01 06:30:00"},
		{name: "empty", in: "", wantErr: true},
		{name: "garbage", in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDateTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantZone, got.HasZone())
			assert.Equal(t, tt.wantWall, got.In(time.UTC).Format("2006-01-02 15:04:05"))
		})
	}
}

func TestDateTime_InAttachesZoneWithoutShift(t *testing.T) {
	denver, err := time.LoadLocation("America/Denver")
	require.NoError(t, err)

	naive := Naive(time.Date(2024, 5, 5, 8, 0, 0, 0, time.UTC))
	got := naive.In(denver)

	assert.Equal(t, 8, got.Hour())
	assert.Equal(t, denver, got.Location())
	assert.False(t, naive.IsZero())
	assert.True(t, DateTime{}.IsZero())
}
