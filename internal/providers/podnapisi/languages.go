package podnapisi

import "subscout/internal/language"

// searchCodes maps alpha3 codes onto the site's search language codes.
var searchCodes = map[string]string{
	"bos": "bs",
	"ces": "cs",
	"dan": "da",
	"deu": "de",
	"ell": "el",
	"eng": "en",
	"fin": "fi",
	"fra": "fr",
	"hrv": "hr",
	"hun": "hu",
	"ita": "it",
	"mkd": "mk",
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
}

func capability() []language.Language {
	out := make([]language.Language, 0, 2*len(searchCodes))
	for alpha3 := range searchCodes {
		base := language.Language{Alpha3: alpha3}
		out = append(out, base, base.WithForced(true))
	}
	return out
}
