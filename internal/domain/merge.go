package domain

import (
	"fmt"
	"sort"
	"time"
)

type obsKey struct {
	station string
	ts      int64
}

func keyOf(o Observation) obsKey {
	return obsKey{station: o.StationID, ts: o.Timestamp.Unix()}
}

// MergeSummary reports what the temporal-key merge did.
type MergeSummary struct {
	General                 int
	Spectrum                int
	GeneralDuplicates       int
	SpectrumDuplicates      int
	WithSpectrum            int
	StationsMissingLocation []string
}

// DuplicatesRemoved is the total over both record sets.
func (s MergeSummary) DuplicatesRemoved() int {
	return s.GeneralDuplicates + s.SpectrumDuplicates
}

// AssignSequence stamps arrival order onto observations in slice order.
func AssignSequence(obs []Observation, start int) int {
	for i := range obs {
		obs[i].Seq = start + i
	}
	return start + len(obs)
}

// ValidateJoinKeys returns ErrMissingJoinKey for the first observation without
// a station id or timestamp.
func ValidateJoinKeys(obs []Observation) error {
	for i, o := range obs {
		if o.StationID == "" || o.Timestamp.IsZero() {
			return fmt.Errorf("%w: record %d (station %q, time %s)", ErrMissingJoinKey, i, o.StationID, o.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// ValidateUniqueKeys returns ErrDuplicateKey for the first repeated
// (station id, timestamp) pair.
func ValidateUniqueKeys(obs []Observation) error {
	seen := make(map[obsKey]struct{}, len(obs))
	for _, o := range obs {
		k := keyOf(o)
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%w: station %s at %s", ErrDuplicateKey, o.StationID, o.Timestamp.Format(time.RFC3339))
		}
		seen[k] = struct{}{}
	}
	return nil
}

// DedupeObservations keeps one observation per (station id, timestamp): the
// one with the highest Seq, i.e. parsed last. The result is sorted by station
// then timestamp. It returns the number of records removed.
func DedupeObservations(obs []Observation) ([]Observation, int) {
	latest := make(map[obsKey]int, len(obs))
	for i, o := range obs {
		k := keyOf(o)
		if j, ok := latest[k]; ok && obs[j].Seq > o.Seq {
			continue
		}
		latest[k] = i
	}

	out := make([]Observation, 0, len(latest))
	for _, i := range latest {
		out = append(out, obs[i])
	}
	sortObservations(out)
	return out, len(obs) - len(out)
}

// LeftJoinSpectrum keeps every general observation and copies the wave fields
// from the spectrum record with the same (station id, timestamp). A general
// observation without a spectrum match is kept unchanged. Both inputs must
// already be de-duplicated. It returns the number of matched rows.
func LeftJoinSpectrum(general, spectrum []Observation) ([]Observation, int) {
	byKey := make(map[obsKey]Observation, len(spectrum))
	for _, s := range spectrum {
		byKey[keyOf(s)] = s
	}

	out := make([]Observation, len(general))
	matched := 0
	for i, g := range general {
		s, ok := byKey[keyOf(g)]
		if ok {
			g.SwellHeight = s.SwellHeight
			g.SwellPeriod = s.SwellPeriod
			g.WindWaveHeight = s.WindWaveHeight
			g.Steepness = s.Steepness
			if s.AveragePeriod != nil {
				g.AveragePeriod = s.AveragePeriod
			}
			matched++
		}
		out[i] = g
	}
	return out, matched
}

// AttachLocations copies station coordinates onto each observation by station
// id. Observations from stations not in the list keep nil coordinates; those
// station ids are returned sorted.
func AttachLocations(obs []Observation, locations []StationLocation) ([]Observation, []string) {
	byID := make(map[string]StationLocation, len(locations))
	for _, l := range locations {
		byID[l.StationID] = l
	}

	missing := map[string]struct{}{}
	out := make([]Observation, len(obs))
	for i, o := range obs {
		if l, ok := byID[o.StationID]; ok {
			lat, lon := l.Latitude, l.Longitude
			o.Latitude = &lat
			o.Longitude = &lon
		} else {
			missing[o.StationID] = struct{}{}
		}
		out[i] = o
	}

	ids := make([]string, 0, len(missing))
	for id := range missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return out, ids
}

// Merge runs the full temporal-key merge: validate keys, de-duplicate each set,
// left-join the spectrum, and attach locations.
func Merge(general, spectrum []Observation, locations []StationLocation) ([]Observation, MergeSummary, error) {
	summary := MergeSummary{General: len(general), Spectrum: len(spectrum)}

	if err := ValidateJoinKeys(general); err != nil {
		return nil, summary, fmt.Errorf("merge general: %w", err)
	}
	if err := ValidateJoinKeys(spectrum); err != nil {
		return nil, summary, fmt.Errorf("merge spectrum: %w", err)
	}

	general, summary.GeneralDuplicates = DedupeObservations(general)
	spectrum, summary.SpectrumDuplicates = DedupeObservations(spectrum)

	joined, matched := LeftJoinSpectrum(general, spectrum)
	summary.WithSpectrum = matched

	located, missing := AttachLocations(joined, locations)
	summary.StationsMissingLocation = missing

	return located, summary, nil
}

func sortObservations(obs []Observation) {
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].StationID != obs[j].StationID {
			return obs[i].StationID < obs[j].StationID
		}
		return obs[i].Timestamp.Before(obs[j].Timestamp)
	})
}
