package normalize

import (
	"regexp"
	"strings"
)

// placeholderZoneID replaces ids that canonicalize to nothing.
const placeholderZoneID = "zone"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

var zoneAliases = map[string]string{
	"dmz_zone":   "dmz",
	"dmz":        "dmz",
	"perimeter":  "dmz",
	"internet":   "internet",
	"external":   "internet",
	"internal":   "internal",
	"on_prem":    "on_prem",
	"on-prem":    "on_prem",
	"onprem":     "on_prem",
	"cloud":      "cloud",
	"tenant":     "tenant",
	"data":       "data",
	"data_layer": "data",
	"identity":   "identity",
	"vendor":     "vendor",
}

// CanonicalZoneID maps a raw zone id to its canonical form: trimmed,
// lowercased, snake_cased and passed through the alias table.
//
//	CanonicalZoneID("DMZ Zone")  // "dmz"
//	CanonicalZoneID("On-Prem")   // "on_prem"
//	CanonicalZoneID("  ##  ")    // "zone"
func CanonicalZoneID(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Trim(nonAlnum.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return placeholderZoneID
	}
	if alias, ok := zoneAliases[s]; ok {
		return alias
	}
	return s
}
