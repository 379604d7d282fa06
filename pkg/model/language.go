package model

import "github.com/m-mizutani/goerr/v2"

// Language is the locale a session, prompt and catalog are bound to
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageAmharic Language = "am"
	LanguageOromo   Language = "om"
)

// DefaultLanguage is used whenever a stored or requested language is unusable
const DefaultLanguage = LanguageEnglish

// Languages lists every supported language in display order
var Languages = []Language{LanguageEnglish, LanguageAmharic, LanguageOromo}

// Validate checks if the language is supported
func (l Language) Validate() error {
	switch l {
	case LanguageEnglish, LanguageAmharic, LanguageOromo:
		return nil
	default:
		return goerr.New("unsupported language", goerr.V("language", l), goerr.T(TagValidation), WithCode(CodeInvalidInput))
	}
}

// Name returns the English name of the language used in prompts
func (l Language) Name() string {
	switch l {
	case LanguageAmharic:
		return "Amharic"
	case LanguageOromo:
		return "Oromo (Afaan Oromoo)"
	default:
		return "English"
	}
}

// SpeechLocale returns the BCP-47 locale for speech recognition
func (l Language) SpeechLocale() string {
	switch l {
	case LanguageAmharic:
		return "am-ET"
	case LanguageOromo:
		return "om-ET"
	default:
		return "en-US"
	}
}

// ParseLanguage returns the language for s, falling back to DefaultLanguage
func ParseLanguage(s string) Language {
	l := Language(s)
	if l.Validate() != nil {
		return DefaultLanguage
	}
	return l
}
