package opensubtitles

import "subscout/internal/language"

// apiCodes maps ISO 639 alpha3 codes onto the lowercase codes the API's
// languages parameter expects. Not the full catalogue, but the set the
// resolver is asked for in practice.
var apiCodes = map[string]string{
	"ara": "ar",
	"bul": "bg",
	"ces": "cs",
	"dan": "da",
	"deu": "de",
	"ell": "el",
	"eng": "en",
	"fin": "fi",
	"fra": "fr",
	"heb": "he",
	"hrv": "hr",
	"hun": "hu",
	"ita": "it",
	"jpn": "ja",
	"kor": "ko",
	"nld": "nl",
	"nor": "no",
	"pol": "pl",
	"por": "pt",
	"ron": "ro",
	"rus": "ru",
	"slk": "sk",
	"slv": "sl",
	"spa": "es",
	"srp": "sr",
	"swe": "sv",
	"tur": "tr",
	"ukr": "uk",
	"vie": "vi",
	"zho": "zh",
}

// countryVariants lists the dialect pairs the API distinguishes.
var countryVariants = map[string][]string{
	"por": {"BR"},
	"zho": {"CN", "TW"},
}

// capability builds the full provider language set: every supported code,
// its country variants, and the forced twin of each.
func capability() []language.Language {
	out := make([]language.Language, 0, 2*len(apiCodes))
	for alpha3 := range apiCodes {
		base := language.Language{Alpha3: alpha3}
		out = append(out, base, base.WithForced(true))
		for _, country := range countryVariants[alpha3] {
			variant := base.WithCountry(country)
			out = append(out, variant, variant.WithForced(true))
		}
	}
	return out
}
