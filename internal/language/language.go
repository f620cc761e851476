package language

import (
	"strings"

	"golang.org/x/text/language"
)

// locales maps common locale codes to the bare language code the
// transcription vendor expects. Entries here take precedence over BCP-47
// parsing so vendor quirks can be pinned explicitly.
var locales = map[string]string{
	"en-us": "en",
	"en-gb": "en",
	"ko-kr": "ko",
	"ja-jp": "ja",
	"zh-cn": "zh",
	"zh-tw": "zh",
	"es-es": "es",
	"es-mx": "es",
	"fr-fr": "fr",
	"de-de": "de",
	"pt-br": "pt",
	"pt-pt": "pt",
	"it-it": "it",
	"ru-ru": "ru",
	"hi-in": "hi",
	"ar-sa": "ar",
	"nl-nl": "nl",
	"vi-vn": "vi",
	"th-th": "th",
	"id-id": "id",
}

// AutoDetect is the vendor value that requests language auto-detection.
const AutoDetect = "auto"

// Normalize maps a caller-supplied locale string to the language code the
// transcription vendor expects.
//
// Empty input requests auto-detection. Known locale codes resolve through
// the table above. Hyphenated locales reduce to the substring before the
// first hyphen, and short bare codes pass through verbatim; neither goes
// through BCP-47 canonicalization, so deprecated tags like "iw" reach the
// vendor unchanged. Only inputs those rules cannot decide (underscore
// separators and the like) are parsed as BCP-47 tags and reduced to their
// base language, falling back to passthrough when parsing fails.
func Normalize(code string) string {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return AutoDetect
	}
	if mapped, ok := locales[trimmed]; ok {
		return mapped
	}
	if idx := strings.Index(trimmed, "-"); idx > 0 {
		return trimmed[:idx]
	}
	if isBareCode(trimmed) {
		return trimmed
	}
	if tag, err := language.Parse(trimmed); err == nil {
		if base, confidence := tag.Base(); confidence >= language.High {
			return base.String()
		}
	}
	return trimmed
}

// isBareCode reports whether the input already looks like a two or three
// letter language code.
func isBareCode(code string) bool {
	if len(code) < 2 || len(code) > 3 {
		return false
	}
	for _, r := range code {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
