package fares

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CarrierNames maps IATA airline codes to display names.
type CarrierNames map[string]string

var defaultCarrierNames = CarrierNames{
	"AA": "American Airlines",
	"AD": "Azul",
	"AF": "Air France",
	"AM": "Aeroméxico",
	"AR": "Aerolíneas Argentinas",
	"AV": "Avianca",
	"AZ": "ITA Airways",
	"BA": "British Airways",
	"CM": "Copa Airlines",
	"DL": "Delta Air Lines",
	"EK": "Emirates",
	"G3": "GOL",
	"IB": "Iberia",
	"KL": "KLM",
	"LA": "LATAM",
	"LH": "Lufthansa",
	"LX": "SWISS",
	"QR": "Qatar Airways",
	"TK": "Turkish Airlines",
	"TP": "TAP Air Portugal",
	"UA": "United Airlines",
	"UX": "Air Europa",
}

func DefaultCarrierNames() CarrierNames {
	out := make(CarrierNames, len(defaultCarrierNames))
	for k, v := range defaultCarrierNames {
		out[k] = v
	}
	return out
}

// Resolve returns the display name for code, or code itself when unknown.
func (c CarrierNames) Resolve(code string) string {
	code = strings.TrimSpace(code)
	if name, ok := c[strings.ToUpper(code)]; ok && name != "" {
		return name
	}
	return code
}

type carrierFile struct {
	Carriers []struct {
		Code string `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"carriers"`
}

// LoadCarrierNames reads a YAML carrier table and layers it over the
// built-in names. An empty path returns the defaults.
func LoadCarrierNames(path string) (CarrierNames, error) {
	names := DefaultCarrierNames()
	if strings.TrimSpace(path) == "" {
		return names, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read carrier names: %w", err)
	}
	var f carrierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse carrier names yaml: %w", err)
	}
	for _, c := range f.Carriers {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		name := strings.TrimSpace(c.Name)
		if code == "" || name == "" {
			continue
		}
		names[code] = name
	}
	return names, nil
}
