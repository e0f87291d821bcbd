package calls

import "strings"

// dialingPrefixes maps E.164 country codes to geo fields. Longest prefix
// wins. This is a deliberately small static table; there is no external geo
// lookup service.
var dialingPrefixes = []struct {
	prefix  string
	country string
	region  string
}{
	{"+1", "US", "North America"},
	{"+20", "EG", "Africa"},
	{"+27", "ZA", "Africa"},
	{"+31", "NL", "Europe"},
	{"+33", "FR", "Europe"},
	{"+34", "ES", "Europe"},
	{"+39", "IT", "Europe"},
	{"+41", "CH", "Europe"},
	{"+43", "AT", "Europe"},
	{"+44", "GB", "Europe"},
	{"+45", "DK", "Europe"},
	{"+46", "SE", "Europe"},
	{"+47", "NO", "Europe"},
	{"+48", "PL", "Europe"},
	{"+49", "DE", "Europe"},
	{"+52", "MX", "North America"},
	{"+55", "BR", "South America"},
	{"+61", "AU", "Oceania"},
	{"+64", "NZ", "Oceania"},
	{"+65", "SG", "Asia"},
	{"+81", "JP", "Asia"},
	{"+82", "KR", "Asia"},
	{"+86", "CN", "Asia"},
	{"+91", "IN", "Asia"},
	{"+971", "AE", "Middle East"},
	{"+972", "IL", "Middle East"},
}

// geoForNumber infers country and region from a number's dialing prefix.
// Unknown or non-E.164 numbers come back empty rather than erroring; geo is
// advisory metadata, never a gate.
func geoForNumber(number string) (country, region string) {
	number = strings.TrimSpace(number)
	if !strings.HasPrefix(number, "+") {
		return "", ""
	}
	bestLen := 0
	for _, entry := range dialingPrefixes {
		if strings.HasPrefix(number, entry.prefix) && len(entry.prefix) > bestLen {
			country, region = entry.country, entry.region
			bestLen = len(entry.prefix)
		}
	}
	return country, region
}
