package kb

import "strings"

// Apostille issuing regions with their own authority key.
const (
	RegionUS    = "us"
	RegionUK    = "uk"
	RegionOther = "other"
)

var ukNames = []string{
	"uk", "u.k.", "united kingdom", "great britain", "britain", "england",
	"scotland", "wales", "northern ireland", "reino unido", "inglaterra",
	"escocia", "gales", "irlanda del norte",
}

var usNames = []string{
	"us", "u.s.", "usa", "u.s.a.", "united states", "united states of america",
	"estados unidos", "eeuu", "ee.uu.",
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "district of columbia", "washington dc",
	"washington d.c.", "florida", "georgia", "hawaii", "idaho", "illinois",
	"indiana", "iowa", "kansas", "kentucky", "louisiana", "maine", "maryland",
	"massachusetts", "michigan", "minnesota", "mississippi", "missouri",
	"montana", "nebraska", "nevada", "new hampshire", "new jersey",
	"new mexico", "new york", "north carolina", "north dakota", "ohio",
	"oklahoma", "oregon", "pennsylvania", "rhode island", "south carolina",
	"south dakota", "tennessee", "texas", "utah", "vermont", "virginia",
	"washington", "west virginia", "wisconsin", "wyoming",
}

// ApostilleRegion maps the free-text issuing state or country to the region
// whose authority issues its apostilles. Input such as "Ohio, USA" matches
// on any comma-separated part.
func ApostilleRegion(issuer string) string {
	for _, part := range strings.Split(strings.ToLower(issuer), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		for _, n := range ukNames {
			if part == n {
				return RegionUK
			}
		}
		for _, n := range usNames {
			if part == n {
				return RegionUS
			}
		}
	}
	return RegionOther
}

// ApostilleAuthority returns the authority for issuer in lang, read from the
// apostille topic as "authority_<region>_<lang>" with the English
// "authority_<region>" as fallback.
func ApostilleAuthority(facts Snapshot, issuer, lang string) string {
	key := "authority_" + ApostilleRegion(issuer)
	if lang != "" && lang != "en" {
		if v := facts.Get(key + "_" + lang); v != "" {
			return v
		}
	}
	return facts.Get(key)
}
