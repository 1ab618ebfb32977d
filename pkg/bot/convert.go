// Copyright 2024-2026 Aiku AI

package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Conversion is one directed unit conversion: out = in*Scale + Offset.
// The affine form covers temperature as well as purely multiplicative
// pairs.
type Conversion struct {
	To     string
	Scale  float64
	Offset float64
}

// UnitTable maps a lowercased unit token to its conversion. The table
// is injected at dispatcher construction so tests can substitute
// fixtures.
type UnitTable map[string]Conversion

// DefaultUnits returns the standard bidirectional conversion table for
// length, mass, temperature and velocity units.
func DefaultUnits() UnitTable {
	return UnitTable{
		"mm":   {To: "in", Scale: 0.0393700787},
		"cm":   {To: "in", Scale: 0.393700787},
		"in":   {To: "cm", Scale: 2.54},
		"m":    {To: "ft", Scale: 3.2808399},
		"ft":   {To: "m", Scale: 0.3048},
		"km":   {To: "mi", Scale: 0.62137119},
		"mi":   {To: "km", Scale: 1.609344},
		"kg":   {To: "lb", Scale: 2.20462262},
		"lb":   {To: "kg", Scale: 0.45359237},
		"lbs":  {To: "kg", Scale: 0.45359237},
		"g":    {To: "oz", Scale: 0.0352739619},
		"oz":   {To: "g", Scale: 28.3495231},
		"c":    {To: "f", Scale: 1.8, Offset: 32},
		"f":    {To: "c", Scale: 5.0 / 9.0, Offset: -160.0 / 9.0},
		"mph":  {To: "kmh", Scale: 1.609344},
		"kmh":  {To: "mph", Scale: 0.62137119},
		"kph":  {To: "mph", Scale: 0.62137119},
		"km/h": {To: "mph", Scale: 0.62137119},
	}
}

// conversionRE captures: signed decimal, optional single space, unit
// token. Longer tokens come first so they win over their prefixes.
var conversionRE = regexp.MustCompile(
	`(?i)([+-]?\d+(?:\.\d+)?)( ?)` +
		`(km/h|kmh|kph|mph|lbs|mm|cm|km|mi|lb|oz|kg|ft|in|m|g|c|f)\b`)

// matchConversions scans text for quantity+unit occurrences and renders
// a "<from>2dp<unit> => <to>2dp<unit>" line per convertible occurrence,
// in source order. Occurrences whose unit has a space-exclusion rule
// and that matched with a literal space are dropped, as are unknown
// units. limit > 0 caps the number of scanned occurrences (the !convert
// command uses 1); limit <= 0 means unbounded. ok is false when no
// occurrence converted.
func matchConversions(units UnitTable, exclusions map[string]struct{}, text string, limit int) (lines []string, ok bool) {
	matches := conversionRE.FindAllStringSubmatch(text, limit)
	for _, m := range matches {
		unit := strings.ToLower(m[3])
		if _, excluded := exclusions[unit]; excluded && m[2] != "" {
			continue
		}
		conv, known := units[unit]
		if !known {
			continue
		}
		value, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		converted := value*conv.Scale + conv.Offset
		lines = append(lines, fmt.Sprintf("%.2f%s => %.2f%s", value, unit, converted, conv.To))
	}
	return lines, len(lines) > 0
}
