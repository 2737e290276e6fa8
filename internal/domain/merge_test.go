package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2024, 4, 26, 15, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func obsAt(station string, minutes int, seq int) Observation {
	return Observation{
		StationID: station,
		Timestamp: baseTime.Add(time.Duration(minutes) * time.Minute),
		Seq:       seq,
	}
}

func TestDedupeObservations(t *testing.T) {
	t.Run("keeps the most recently parsed record", func(t *testing.T) {
		older := obsAt("41009", 0, 1)
		older.WindSpeed = ptr(10)
		newer := obsAt("41009", 0, 7)
		newer.WindSpeed = ptr(12)
		other := obsAt("41009", 10, 3)

		out, removed := DedupeObservations([]Observation{newer, other, older})
		require.Len(t, out, 2)
		assert.Equal(t, 1, removed)
		assert.Equal(t, 7, out[0].Seq)
		assert.InDelta(t, 12.0, *out[0].WindSpeed, 1e-9)
		assert.Equal(t, 3, out[1].Seq)
	})

	t.Run("result is independent of input order", func(t *testing.T) {
		a := []Observation{obsAt("B", 0, 1), obsAt("A", 0, 2), obsAt("A", 0, 3), obsAt("B", 0, 4)}
		b := []Observation{a[3], a[2], a[1], a[0]}

		outA, _ := DedupeObservations(a)
		outB, _ := DedupeObservations(b)
		if diff := cmp.Diff(outA, outB); diff != "" {
			t.Fatalf("dedupe not deterministic (-a +b):\n%s", diff)
		}
	})

	t.Run("no duplicate keys remain", func(t *testing.T) {
		var obs []Observation
		for i := range 50 {
			obs = append(obs, obsAt([]string{"A", "B", "C"}[i%3], i%4*10, i))
		}
		out, removed := DedupeObservations(obs)
		require.NoError(t, ValidateUniqueKeys(out))
		assert.Equal(t, len(obs)-len(out), removed)
	})
}

func TestValidateUniqueKeys(t *testing.T) {
	err := ValidateUniqueKeys([]Observation{obsAt("A", 0, 1), obsAt("A", 0, 2)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey))

	assert.NoError(t, ValidateUniqueKeys([]Observation{obsAt("A", 0, 1), obsAt("A", 10, 2)}))
}

func TestValidateJoinKeys(t *testing.T) {
	err := ValidateJoinKeys([]Observation{{StationID: "", Timestamp: baseTime}})
	assert.ErrorIs(t, err, ErrMissingJoinKey)

	err = ValidateJoinKeys([]Observation{{StationID: "A"}})
	assert.ErrorIs(t, err, ErrMissingJoinKey)
}

func TestLeftJoinSpectrum(t *testing.T) {
	g1 := obsAt("41009", 0, 1)
	g1.AveragePeriod = ptr(5.0)
	g2 := obsAt("41009", 10, 2)
	g2.AveragePeriod = ptr(5.1)

	s1 := obsAt("41009", 0, 3)
	s1.SwellHeight = ptr(0.8)
	s1.WindWaveHeight = ptr(0.9)
	s1.AveragePeriod = ptr(5.6)
	s1.Steepness = "AVERAGE"
	sOther := obsAt("42001", 0, 4)
	sOther.SwellHeight = ptr(2.0)

	out, matched := LeftJoinSpectrum([]Observation{g1, g2}, []Observation{s1, sOther})
	require.Len(t, out, 2, "every general observation is preserved")
	assert.Equal(t, 1, matched)

	assert.InDelta(t, 0.8, *out[0].SwellHeight, 1e-9)
	assert.InDelta(t, 0.9, *out[0].WindWaveHeight, 1e-9)
	assert.InDelta(t, 5.6, *out[0].AveragePeriod, 1e-9, "spectrum period wins")
	assert.Equal(t, "AVERAGE", out[0].Steepness)

	assert.Nil(t, out[1].SwellHeight, "absent wave data is valid")
	assert.InDelta(t, 5.1, *out[1].AveragePeriod, 1e-9)
}

func TestAttachLocations(t *testing.T) {
	obs := []Observation{obsAt("41009", 0, 1), obsAt("ZZZZ1", 0, 2), obsAt("ZZZZ1", 10, 3)}
	locs := []StationLocation{{StationID: "41009", Latitude: 28.5, Longitude: -80.18}}

	out, missing := AttachLocations(obs, locs)
	require.Len(t, out, 3)
	require.NotNil(t, out[0].Latitude)
	assert.InDelta(t, 28.5, *out[0].Latitude, 1e-9)
	assert.InDelta(t, -80.18, *out[0].Longitude, 1e-9)
	assert.Nil(t, out[1].Latitude)
	assert.Equal(t, []string{"ZZZZ1"}, missing)
}

func TestMerge(t *testing.T) {
	general := []Observation{obsAt("A", 0, 0), obsAt("A", 0, 1), obsAt("A", 10, 2), obsAt("B", 0, 3)}
	spectrum := []Observation{obsAt("A", 0, 4), obsAt("A", 0, 5)}
	spectrum[1].SwellHeight = ptr(1.5)
	locs := []StationLocation{{StationID: "A", Latitude: 10, Longitude: 20}}

	merged, summary, err := Merge(general, spectrum, locs)
	require.NoError(t, err)
	require.Len(t, merged, 3)
	require.NoError(t, ValidateUniqueKeys(merged))

	assert.Equal(t, 4, summary.General)
	assert.Equal(t, 2, summary.Spectrum)
	assert.Equal(t, 1, summary.GeneralDuplicates)
	assert.Equal(t, 1, summary.SpectrumDuplicates)
	assert.Equal(t, 2, summary.DuplicatesRemoved())
	assert.Equal(t, 1, summary.WithSpectrum)
	assert.Equal(t, []string{"B"}, summary.StationsMissingLocation)
	assert.InDelta(t, 1.5, *merged[0].SwellHeight, 1e-9, "later spectrum record wins")
}

func TestMerge_MissingJoinKey(t *testing.T) {
	_, _, err := Merge([]Observation{{Timestamp: baseTime}}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingJoinKey)
}

func TestAssignSequence(t *testing.T) {
	obs := make([]Observation, 3)
	next := AssignSequence(obs, 10)
	assert.Equal(t, 13, next)
	assert.Equal(t, 12, obs[2].Seq)
}
