// Package netcdf reads and writes gridded time series as NetCDF files.
package netcdf

// Layout names the variables of a NetCDF grid file.
type Layout struct {
	Variable string
	Lat      string
	Lon      string
	Time     string
}

// SWELayout is the layout of the daily snow water equivalent archive.
func SWELayout(variable string) Layout {
	return Layout{Variable: variable, Lat: "lat", Lon: "lon", Time: "time"}
}

// PrecipLayout is the layout of the precipitation series archive and of the
// files produced by Writer.
func PrecipLayout(variable string) Layout {
	return Layout{Variable: variable, Lat: "latitude", Lon: "longitude", Time: "time"}
}

// aliases are tried after the layout's own axis name.
var aliases = map[string][]string{
	"lat":       {"latitude"},
	"latitude":  {"lat"},
	"lon":       {"longitude"},
	"longitude": {"lon"},
}

func candidates(name string) []string {
	return append([]string{name}, aliases[name]...)
}
