package ts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdent(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Ident
		wantKey string
		wantErr bool
	}{
		{
			name:    "four parts",
			in:      "06752260.Aquarius.Discharge.IrregSecond",
			want:    Ident{Location: "06752260", Source: "Aquarius", Type: "Discharge", Interval: "IrregSecond"},
			wantKey: "06752260.Aquarius.Discharge.IrregSecond",
		},
		{
			name:    "statistic and scenario with datastore",
			in:      "06752260.Aquarius.Discharge-Max.Day.Historical~Aquarius",
			want:    Ident{Location: "06752260", Source: "Aquarius", Type: "Discharge-Max", Interval: "Day", Scenario: "Historical", InputType: "Aquarius"},
			wantKey: "06752260.Aquarius.Discharge-Max.Day.Historical",
		},
		{
			name:    "quoted type with dot",
			in:      "LOC.Aquarius.'Water.Temp'-Mean.Hour~Aquarius~prod",
			want:    Ident{Location: "LOC", Source: "Aquarius", Type: "'Water.Temp'-Mean", Interval: "Hour", InputType: "Aquarius", InputName: "prod"},
			wantKey: "LOC.Aquarius.Water.Temp-Mean.Hour",
		},
		{name: "too few parts", in: "LOC.Aquarius.Stage", wantErr: true},
		{name: "too many parts", in: "a.b.c.d.e.f", wantErr: true},
		{name: "unbalanced quote", in: "LOC.Aquarius.'Stage.Day.x", wantErr: true},
		{name: "empty location", in: ".Aquarius.Stage.Day", wantErr: true},
		{name: "empty", in: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIdent(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantKey, got.Key())
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestIdent_WithInterval(t *testing.T) {
	id := Ident{Location: "L", Source: "Aquarius", Type: "Stage", Interval: "IrregSecond"}
	assert.Equal(t, "L.Aquarius.Stage.IrregHour", id.WithInterval("IrregHour").AliasFree())
	assert.Equal(t, "IrregSecond", id.Interval)
}

func TestQuoteType(t *testing.T) {
	assert.Equal(t, "Stage", QuoteType("Stage"))
	assert.Equal(t, "'Water.Temp'", QuoteType("Water.Temp"))
	assert.Equal(t, "'Q-Obs'", QuoteType("Q-Obs"))
}

func TestTimeSeries_AllocateAndSetValue(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := New(Ident{Location: "L", Source: "Aquarius", Type: "Stage", Interval: "IrregSecond"})

	_, err := series.SetValue(start, 1)
	assert.ErrorIs(t, err, ErrNotAllocated)

	assert.Error(t, series.Allocate(), "period not set")

	series.Date1 = start
	series.Date2 = start.Add(2 * time.Hour)
	require.NoError(t, series.Allocate())
	assert.True(t, series.IsAllocated())

	for _, p := range []struct {
		offset time.Duration
		v      float64
	}{{2 * time.Hour, 3}, {0, 1}, {time.Hour, 2}, {time.Hour, 2.5}} {
		ok, err := series.SetValue(start.Add(p.offset), p.v)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := series.SetValue(start.Add(3*time.Hour), 9)
	require.NoError(t, err)
	assert.False(t, ok, "outside period")

	points := series.Points()
	require.Len(t, points, 3)
	assert.Equal(t, []float64{1, 2.5, 3}, []float64{points[0].Value, points[1].Value, points[2].Value})

	v, found := series.Value(start.Add(time.Hour))
	assert.True(t, found)
	assert.Equal(t, 2.5, v)

	v, found = series.Value(start.Add(30 * time.Minute))
	assert.False(t, found)
	assert.True(t, series.IsMissing(v))
	assert.True(t, math.IsNaN(series.MissingValue))
}

func TestTimeSeries_AllocateRejectsReversedPeriod(t *testing.T) {
	series := New(Ident{Location: "L", Source: "Aquarius", Type: "Stage", Interval: "Day"})
	series.Date1 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	series.Date2 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Error(t, series.Allocate())
}

func TestTimeSeries_Properties(t *testing.T) {
	series := New(Ident{Location: "L", Source: "Aquarius", Type: "Stage", Interval: "Day"})
	series.SetProperty("b", 2)
	series.SetProperty("a", "x")

	assert.Equal(t, []string{"a", "b"}, series.PropertyNames())
	v, ok := series.Property("a")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	props := series.Properties()
	props["c"] = 3
	_, ok = series.Property("c")
	assert.False(t, ok, "Properties returns a copy")
}
