package metadata

// ShortUnits maps logger unit strings to short display forms. A unit that
// maps to "" is omitted from display names.
type ShortUnits map[string]string

// Short returns the abbreviation of unit, or unit itself if none is known.
func (u ShortUnits) Short(unit string) string {
	if s, ok := u[unit]; ok {
		return s
	}
	return unit
}

// DefaultShortUnits returns a fresh copy of the built-in unit catalog.
func DefaultShortUnits() ShortUnits {
	return ShortUnits{
		"Volts":      "V",
		"volts":      "V",
		"mVolts":     "mV",
		"Deg C":      "°C",
		"DegC":       "°C",
		"deg C":      "°C",
		"Deg":        "°",
		"degrees":    "°",
		"meters":     "m",
		"meter":      "m",
		"m/s":        "m/s",
		"meters/sec": "m/s",
		"W/m^2":      "W/m²",
		"W/m2":       "W/m²",
		"kW/m^2":     "kW/m²",
		"MJ/m^2":     "MJ/m²",
		"umol/m^2/s": "µmol/m²/s",
		"mmol/m^2/s": "mmol/m²/s",
		"uS/cm":      "µS/cm",
		"mS/cm":      "mS/cm",
		"ug/l":       "µg/l",
		"mg/l":       "mg/l",
		"Watts":      "W",
		"Ohms":       "Ω",
		"kOhms":      "kΩ",
		"unitless":   "",
		"Unitless":   "",
		"arb":        "",
		"Hz":         "Hz",
		"mbar":       "mbar",
		"hPa":        "hPa",
		"kPa":        "kPa",
		"%":          "%",
		"mm":         "mm",
		"Seconds":    "s",
		"seconds":    "s",
		"Minutes":    "min",
		"minutes":    "min",
	}
}
