package bootstrap

import (
	"strings"

	"golang.org/x/text/language"
)

// MatchVoiceLanguage maps a POSIX locale (the LANG variable, e.g.
// "pt_BR.UTF-8") to the closest tag in available, which holds BCP-47-ish
// voice codes like "en", "pt-br" or "de". It returns an empty string when
// nothing matches with any confidence.
func MatchVoiceLanguage(lang string, available []string) string {
	tag, err := language.Parse(normalizeLocale(lang))
	if err != nil {
		return ""
	}

	tags := make([]language.Tag, 0, len(available))
	codes := make([]string, 0, len(available))
	for _, code := range available {
		t, err := language.Parse(normalizeLocale(code))
		if err != nil {
			continue
		}
		tags = append(tags, t)
		codes = append(codes, code)
	}
	if len(tags) == 0 {
		return ""
	}

	_, idx, conf := language.NewMatcher(tags).Match(tag)
	if conf == language.No {
		return ""
	}
	return codes[idx]
}

// normalizeLocale strips the encoding and modifier parts of a POSIX locale
// and converts the separator: "pt_BR.UTF-8@latin" becomes "pt-BR".
func normalizeLocale(locale string) string {
	if i := strings.IndexByte(locale, '.'); i >= 0 {
		locale = locale[:i]
	}
	if i := strings.IndexByte(locale, '@'); i >= 0 {
		locale = locale[:i]
	}
	return strings.ReplaceAll(locale, "_", "-")
}
