package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSitesCSV(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		in := "Name,latitude,longitude\nPensacola,30.20,-87.30\nTampa,27.60,-83.20\n"
		sites, err := LoadSitesCSV(strings.NewReader(in))
		require.NoError(t, err)
		require.Len(t, sites, 2)
		assert.Equal(t, Site{Name: "Pensacola", Latitude: 30.2, Longitude: -87.3}, sites[0])
	})

	t.Run("columns in any order", func(t *testing.T) {
		in := "longitude,NAME,Latitude\n-87.30,Pensacola,30.20\n"
		sites, err := LoadSitesCSV(strings.NewReader(in))
		require.NoError(t, err)
		assert.InDelta(t, 30.2, sites[0].Latitude, 1e-9)
		assert.InDelta(t, -87.3, sites[0].Longitude, 1e-9)
	})

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"missing column", "Name,latitude\nA,1\n", "longitude"},
		{"bad coordinate", "Name,latitude,longitude\nA,x,1\n", "line 2"},
		{"duplicate name", "Name,latitude,longitude\nA,1,1\nA,2,2\n", "duplicate"},
		{"out of range", "Name,latitude,longitude\nA,91,1\n", "out of range"},
		{"empty", "Name,latitude,longitude\n", "no sites"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSitesCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSitesYAML(t *testing.T) {
	in := `
sites:
  - name: Cape Canaveral
    latitude: 28.4
    longitude: -80.3
  - name: Panama City
    latitude: 29.9
    longitude: -85.9
`
	sites, err := LoadSitesYAML(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, "Cape Canaveral", sites[0].Name)
	assert.InDelta(t, -85.9, sites[1].Longitude, 1e-9)

	_, err = LoadSitesYAML(strings.NewReader("sites: []\n"))
	require.Error(t, err)
}

func TestLoadFieldMap(t *testing.T) {
	fm, err := LoadFieldMap(strings.NewReader("#YY,year\nWSPD, wind_spd\n\nSwH,swell_height\n"))
	require.NoError(t, err)
	assert.Equal(t, "year", fm["YY"])
	assert.Equal(t, "wind_spd", fm["WSPD"])
	assert.Equal(t, "swell_height", fm["SwH"])

	_, err = LoadFieldMap(strings.NewReader("WSPD\n"))
	require.Error(t, err)
}

func TestFieldMap_CaseSensitive(t *testing.T) {
	idx := DefaultFieldMap().Index([]string{"YY", "MM", "DD", "hh", "mm", "FOO"})
	assert.Equal(t, 1, idx[ColMonth])
	assert.Equal(t, 4, idx[ColMinute])
	assert.Equal(t, 5, idx["foo"])
}

func TestSample(t *testing.T) {
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	assert.Len(t, Sample(items, Sampling{Fraction: 1}), 1000)
	assert.Len(t, Sample(items, Sampling{}), 1000, "zero fraction means no sampling")

	s := Sampling{Fraction: 0.1, Seed: 42}
	a := Sample(items, s)
	b := Sample(items, s)
	assert.Equal(t, a, b, "same seed, same subset")
	assert.Greater(t, len(a), 50)
	assert.Less(t, len(a), 150)
	for i := 1; i < len(a); i++ {
		assert.Less(t, a[i-1], a[i], "input order preserved")
	}
}
