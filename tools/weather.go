package tools

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/deanmachines/foundry/tool"
	"github.com/tidwall/gjson"
)

// Weather resolves a location name and reports current conditions via
// the open-meteo APIs, which need no API key.
type Weather struct {
	Client      *http.Client
	GeocodeURL  string
	ForecastURL string
}

func NewWeather() *Weather {
	return &Weather{
		Client:      defaultHTTPClient(),
		GeocodeURL:  "https://geocoding-api.open-meteo.com/v1/search",
		ForecastURL: "https://api.open-meteo.com/v1/forecast",
	}
}

func (w *Weather) Definition() tool.Definition {
	return tool.Must(
		w.Lookup,
		tool.Name("weather"),
		tool.Description("Report the current weather for a city or place name."),
		tool.Parameters("location"),
	)
}

// Lookup geocodes the location, then fetches the current conditions.
func (w *Weather) Lookup(location string) string {
	if strings.TrimSpace(location) == "" {
		return "weather lookup needs a location"
	}

	geo, err := w.get(w.GeocodeURL + "?count=1&name=" + url.QueryEscape(location))
	if err != nil {
		return fmt.Sprintf("weather lookup for %q failed: %v", location, err)
	}

	place := gjson.GetBytes(geo, "results.0")
	if !place.Exists() {
		return fmt.Sprintf("no such place: %q", location)
	}

	query := fmt.Sprintf("?latitude=%s&longitude=%s&current=temperature_2m,wind_speed_10m",
		place.Get("latitude").String(), place.Get("longitude").String())
	forecast, err := w.get(w.ForecastURL + query)
	if err != nil {
		return fmt.Sprintf("weather lookup for %q failed: %v", location, err)
	}

	current := gjson.GetBytes(forecast, "current")
	return fmt.Sprintf("%s: %s°C, wind %s km/h",
		place.Get("name").String(),
		current.Get("temperature_2m").String(),
		current.Get("wind_speed_10m").String(),
	)
}

func (w *Weather) get(u string) ([]byte, error) {
	resp, err := w.Client.Get(u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
