package prompt

// DefaultLanguage is used when a request names no known language code.
const DefaultLanguage = "English"

var languages = map[string]string{
	"sp": "Española",
	"gr": "Deutsche",
	"it": "Italiana",
	"rs": "русский",
	"en": "English",
	"cn": "中国人",
	"fr": "français",
	"ar": "Arabic",
	"jp": "日本語",
	"gu": "ગુજરાતી",
	"hi": "हिन्दी",
	"mr": "मराठी",
	"te": "తెలుగు",
	"ta": "தமிழ்",
}

// LanguageLabel maps a language code to the label used in the persona instruction.
func LanguageLabel(code string) string {
	if label, ok := languages[code]; ok {
		return label
	}
	return DefaultLanguage
}
