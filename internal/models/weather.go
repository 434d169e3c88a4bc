package models

// Units selects the measurement system for a weather query.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
	UnitsStandard Units = "standard"
)

// Valid reports whether u is one of the supported measurement systems.
func (u Units) Valid() bool {
	switch u {
	case UnitsMetric, UnitsImperial, UnitsStandard:
		return true
	}
	return false
}

// Coord is the report origin.
type Coord struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Weather is one condition entry (the API returns a one-element list).
type Weather struct {
	ID          int64  `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Main carries temperature, pressure and humidity readings. Temperature units
// follow the query: standard=Kelvin, metric=Celsius, imperial=Fahrenheit.
type Main struct {
	Temp      float64  `json:"temp"`
	FeelsLike float64  `json:"feels_like"`
	Pressure  float64  `json:"pressure"`
	Humidity  float64  `json:"humidity"`
	TempMin   float64  `json:"temp_min"`
	TempMax   float64  `json:"temp_max"`
	SeaLevel  *float64 `json:"sea_level,omitempty"`
	GrndLevel *float64 `json:"grnd_level,omitempty"`
}

// Wind speed is meter/sec for standard and metric, miles/hour for imperial.
type Wind struct {
	Speed float64  `json:"speed"`
	Deg   float64  `json:"deg"`
	Gust  *float64 `json:"gust,omitempty"`
}

// Clouds is cloudiness in percent.
type Clouds struct {
	All float64 `json:"all"`
}

// Volume is precipitation over the trailing one and three hours, mm.
type Volume struct {
	H1 *float64 `json:"1h,omitempty"`
	H3 *float64 `json:"3h,omitempty"`
}

// Sys holds country and sun times plus internal upstream parameters.
type Sys struct {
	Type    *int64   `json:"type,omitempty"`
	ID      *int64   `json:"id,omitempty"`
	Message *float64 `json:"message,omitempty"`
	Country string   `json:"country"`
	Sunrise int64    `json:"sunrise"`
	Sunset  int64    `json:"sunset"`
}

// CurrentWeather is one current-weather report as returned by the
// OpenWeatherMap /data/2.5/weather endpoint. The polling core treats it as an
// opaque payload; no field is inspected after parsing.
type CurrentWeather struct {
	Coord      Coord     `json:"coord"`
	Weather    []Weather `json:"weather"`
	Base       string    `json:"base"`
	Main       Main      `json:"main"`
	Visibility int64     `json:"visibility"`
	Wind       Wind      `json:"wind"`
	Clouds     Clouds    `json:"clouds"`
	Rain       *Volume   `json:"rain,omitempty"`
	Snow       *Volume   `json:"snow,omitempty"`
	Dt         int64     `json:"dt"`
	Sys        Sys       `json:"sys"`
	Timezone   int64     `json:"timezone"`
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Cod        int64     `json:"cod"`
}
