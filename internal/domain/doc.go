// Package domain models gridded snowpack and precipitation data and the
// liquid water flux derived from them.
//
// # Data Sources
//
// Snow water equivalent (SWE) comes from daily NetCDF files, one file per
// date, on a fine regular lat/lon grid. Precipitation comes from a NetCDF
// time series of 24-hour accumulations on a coarser grid that extends past
// the SWE coverage. Both are in millimetres of water.
//
// # Grid Conventions
//
// A [GridDataset] is a dense time × lat × lon array:
//
//	Values[t][y][x] is the value at Time[t], Lat[y], Lon[x].
//	Lat and Lon are strictly monotonic; descending latitude is common.
//	Time is ascending and unique. Daily data is stamped at midnight UTC.
//
// Missing cells hold [NoData], which is NaN. Any arithmetic involving a
// NoData operand yields NoData, so masks propagate without bookkeeping.
// Always test with [IsNoData]; NaN never compares equal to itself.
//
// Date ranges are closed intervals of UTC calendar dates. See [Date] and
// [GridDataset.SelectDates].
//
// # Liquid Water Flux
//
// The flux for step t is the water released from the snowpack plus the rain
// that fell on it:
//
//	LWF(t) = max(0, SWE(t-1) - SWE(t) + P(t))
//
// with SWE and P on the same grid. Negative values (snow accumulation
// exceeding input) are converted to zero. The first SWE step has no
// predecessor, so a run over N days yields N-1 flux steps.
//
// Units: the computation is in mm/day. The rate product divides by
// 86,400,000 to express metres per second.
//
// # Errors
//
// Failures rooted in the data wrap one of [ErrShapeMismatch],
// [ErrTimeAlignment], [ErrInsufficientData] or [ErrNotFound]. [IsPermanent]
// reports whether retrying could help.
package domain
