package language

import (
	"fmt"
	"sort"
	"strings"

	xlang "golang.org/x/text/language"
)

// Language identifies a subtitle language as an immutable value: an ISO 639
// alpha3 code plus optional country, optional script, and a forced flag for
// foreign-parts-only tracks. Two languages are equal only when all four
// fields match; a forced and a non-forced variant of the same code count as
// distinct languages for inventory purposes.
type Language struct {
	Alpha3  string
	Country string
	Script  string
	Forced  bool
}

const forcedSuffix = ":forced"

// Parse converts an IETF tag or bare ISO code ("en", "eng", "pt-BR",
// "zh-Hant") into a Language. A ":forced" suffix marks the forced variant.
func Parse(code string) (Language, error) {
	code = strings.TrimSpace(code)
	forced := false
	if rest, ok := strings.CutSuffix(code, forcedSuffix); ok {
		forced = true
		code = strings.TrimSpace(rest)
	}
	if code == "" {
		return Language{}, fmt.Errorf("language: empty code")
	}
	tag, err := xlang.Parse(code)
	if err != nil {
		return Language{}, fmt.Errorf("language: parse %q: %w", code, err)
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return Language{}, fmt.Errorf("language: no base language in %q", code)
	}
	lang := Language{Alpha3: base.ISO3(), Forced: forced}
	if region, conf := tag.Region(); conf == xlang.Exact && region.IsCountry() {
		lang.Country = region.String()
	}
	if script, conf := tag.Script(); conf == xlang.Exact {
		lang.Script = script.String()
	}
	return lang, nil
}

// MustParse is Parse for statically known codes; it panics on bad input.
func MustParse(code string) Language {
	lang, err := Parse(code)
	if err != nil {
		panic(err)
	}
	return lang
}

// ParseList parses a slice of codes, skipping blanks.
func ParseList(codes []string) ([]Language, error) {
	out := make([]Language, 0, len(codes))
	for _, code := range codes {
		if strings.TrimSpace(code) == "" {
			continue
		}
		lang, err := Parse(code)
		if err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	return out, nil
}

// WithCountry derives a copy with a different country. The forced flag and
// script carry over unchanged.
func (l Language) WithCountry(country string) Language {
	l.Country = strings.ToUpper(strings.TrimSpace(country))
	return l
}

// WithScript derives a copy with a different script, preserving the rest.
func (l Language) WithScript(script string) Language {
	l.Script = strings.TrimSpace(script)
	return l
}

// WithForced derives a copy with the forced flag set explicitly.
func (l Language) WithForced(forced bool) Language {
	l.Forced = forced
	return l
}

// StripCountry drops the country component, keeping script and forced.
func (l Language) StripCountry() Language {
	l.Country = ""
	return l
}

// Equal reports full-value equality across all four fields.
func (l Language) Equal(other Language) bool {
	return l == other
}

// Key returns a stable string form usable as a map or database key.
func (l Language) Key() string {
	return l.String()
}

func (l Language) String() string {
	var b strings.Builder
	b.WriteString(l.Alpha3)
	if l.Script != "" {
		b.WriteByte('-')
		b.WriteString(l.Script)
	}
	if l.Country != "" {
		b.WriteByte('-')
		b.WriteString(l.Country)
	}
	if l.Forced {
		b.WriteString(forcedSuffix)
	}
	return b.String()
}

// Contains reports whether langs includes the exact language.
func Contains(langs []Language, target Language) bool {
	for _, l := range langs {
		if l == target {
			return true
		}
	}
	return false
}

// Dedupe returns langs with exact duplicates removed, order preserved.
func Dedupe(langs []Language) []Language {
	seen := make(map[Language]struct{}, len(langs))
	out := make([]Language, 0, len(langs))
	for _, l := range langs {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Intersect returns the languages present in both slices, in the order of a.
func Intersect(a, b []Language) []Language {
	out := make([]Language, 0, len(a))
	for _, l := range a {
		if Contains(b, l) {
			out = append(out, l)
		}
	}
	return out
}

// Strings renders a language slice for logging, sorted for stable output.
func Strings(langs []Language) []string {
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		out = append(out, l.String())
	}
	sort.Strings(out)
	return out
}
