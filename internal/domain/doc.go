// Package domain models National Data Buoy Center (NDBC) buoy reports and the
// splashdown-site proximity analysis built on top of them.
//
// # Data Source
//
// Reports come from the NDBC realtime2 feed at
// https://www.ndbc.noaa.gov/data/realtime2/. Each reporting station publishes
// two rolling 45-day files at a 10-minute cadence:
//
//	<station>.txt   standard meteorological data (wind, gust, pressure, ...)
//	<station>.spec  spectral wave summary (swell, wind-wave, steepness)
//
// The list of currently reporting stations, with coordinates, comes from
// https://www.ndbc.noaa.gov/data/latest_obs/latest_obs.txt.
//
// # NDBC File Layout
//
// All three files share one layout:
//
//	#YY  MM DD hh mm WDIR WSPD GST  WVHT ...   header, first token prefixed with '#'
//	#yr  mo dy hr mn degT m/s  m/s  m    ...   units row, discarded
//	2024 04 26 15 10 120  7.0  9.0  1.2  ...   data rows, whitespace delimited
//
// The station id is not part of the file; it is taken from the file name stem
// ("41009.txt" -> "41009"). latest_obs.txt instead carries it in its "#STN"
// column.
//
// Raw column names are translated to normalized names by a [FieldMap].
// Column names are case-sensitive: "MM" is the month and "mm" the minute.
//
// Missing values:
//
//	"MM" is the NDBC sentinel for a missing measurement. It becomes a nil
//	pointer, never zero, so it does not contribute to downstream means.
//
// Steepness:
//
//	The .spec STEEPNESS column is categorical ("SWELL", "AVERAGE", "STEEP",
//	"VERY_STEEP", "N/A") and is kept as a string.
//
// # Units
//
// Wind speed and gust are converted from knots to feet per second
// (1 kt = 1.68781 ft/s) and rounded to two decimals. Wave heights stay in the
// feed's units.
//
// # Keys
//
// (station id, timestamp) identifies an observation. Overlapping downloads
// produce duplicates; [DedupeObservations] resolves them by keeping the record
// parsed last.
package domain
