package entity

import "strings"

// Language represents a target language code using ISO-style abbreviations.
type Language string

const (
	LanguageUnspecified Language = ""
	LanguageEnglish     Language = "en"
	LanguageSpanish     Language = "es"
	LanguageFrench      Language = "fr"
	LanguageGerman      Language = "de"
	LanguageItalian     Language = "it"
	LanguagePortuguese  Language = "pt"
	LanguageJapanese    Language = "ja"
	LanguageChinese     Language = "zh"
)

// Code returns the lowercase language code (without defaulting).
func (l Language) Code() string {
	return strings.ToLower(strings.TrimSpace(string(l)))
}

// ParseLanguage converts an arbitrary string into a Language value.
// Unknown codes are kept verbatim (lowercased) so that books created by
// newer clients survive a round trip.
func ParseLanguage(code string) Language {
	return Language(strings.ToLower(strings.TrimSpace(code)))
}

// NormalizeWordToken is the matching form of a word card's text.
func NormalizeWordToken(word string) string {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(trimmed)
}
