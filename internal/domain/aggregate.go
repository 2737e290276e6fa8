package domain

import (
	"fmt"
	"sort"
	"time"
)

// JoinNearby restricts observations to stations associated with a site. It is
// an inner, many-to-many join on station id: a station near two sites yields
// one row per site. Wind and wave bins are derived on the way.
func JoinNearby(assocs []Association, obs []Observation) []NearbyObservation {
	byStation := make(map[string][]Observation)
	for _, o := range obs {
		byStation[o.StationID] = append(byStation[o.StationID], o)
	}

	var out []NearbyObservation
	for _, a := range assocs {
		for _, o := range byStation[a.StationID] {
			out = append(out, NearbyObservation{
				SiteName:      a.SiteName,
				Observation:   o,
				WindBin:       roundOptional(o.WindSpeed, 0),
				WaveHeightBin: roundOptional(o.WindWaveHeight, 2),
			})
		}
	}
	return out
}

type conditionKey struct {
	ts   int64
	site string
}

type conditionAcc struct {
	ts               time.Time
	windSum, waveSum float64
	windN, waveN     int
}

// SummarizeBySite computes, for every (timestamp, site) pair present in rows,
// the mean wind bin and mean wave-height bin. Absent bins do not contribute;
// a group without any value keeps a nil mean. Output is sorted by timestamp
// then site name.
func SummarizeBySite(rows []NearbyObservation) []SiteConditions {
	groups := make(map[conditionKey]*conditionAcc)
	for _, r := range rows {
		k := conditionKey{ts: r.Timestamp.Unix(), site: r.SiteName}
		acc, ok := groups[k]
		if !ok {
			acc = &conditionAcc{ts: r.Timestamp}
			groups[k] = acc
		}
		if r.WindBin != nil {
			acc.windSum += *r.WindBin
			acc.windN++
		}
		if r.WaveHeightBin != nil {
			acc.waveSum += *r.WaveHeightBin
			acc.waveN++
		}
	}

	out := make([]SiteConditions, 0, len(groups))
	for k, acc := range groups {
		c := SiteConditions{
			Timestamp:   acc.ts.UTC(),
			SiteName:    k.site,
			WindSamples: acc.windN,
			WaveSamples: acc.waveN,
		}
		if acc.windN > 0 {
			m := acc.windSum / float64(acc.windN)
			c.MeanWindBin = &m
		}
		if acc.waveN > 0 {
			m := acc.waveSum / float64(acc.waveN)
			c.MeanWaveHeightBin = &m
		}
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].SiteName < out[j].SiteName
	})
	return out
}

// StationsPerSite counts distinct associated stations for each site.
func StationsPerSite(assocs []Association) map[string]int {
	seen := make(map[Association]struct{}, len(assocs))
	counts := make(map[string]int)
	for _, a := range assocs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		counts[a.SiteName]++
	}
	return counts
}

// Aggregate joins associations to the merged series and summarizes by site.
// The merged series must be free of duplicate keys.
func Aggregate(assocs []Association, obs []Observation) ([]NearbyObservation, []SiteConditions, error) {
	if err := ValidateUniqueKeys(obs); err != nil {
		return nil, nil, fmt.Errorf("aggregate: %w", err)
	}
	rows := JoinNearby(assocs, obs)
	return rows, SummarizeBySite(rows), nil
}

func roundOptional(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	r := RoundTo(*v, decimals)
	return &r
}
