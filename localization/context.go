package localization

import (
	"context"
	"strings"

	"golang.org/x/text/language"
)

type contextKey string

func (c contextKey) String() string {
	return "barberdesk/localization/" + string(c)
}

const ctxKeyLanguage = contextKey("languageKey")

// MetadataKey carries the language on outgoing messages.
const MetadataKey = "lang"

// ToContext records the language requests made with ctx should ask for.
func ToContext(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, ctxKeyLanguage, Normalize(lang))
}

// FromContext returns the language recorded by ToContext, or "".
func FromContext(ctx context.Context) string {
	lang, ok := ctx.Value(ctxKeyLanguage).(string)
	if !ok {
		return ""
	}
	return lang
}

// Normalize turns a language code such as "PT_br" or " pt-BR " into its BCP 47 form.
// Codes x/text cannot parse are lower-cased and trimmed instead.
func Normalize(lang string) string {
	lang = strings.TrimSpace(strings.ReplaceAll(lang, "_", "-"))
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return strings.ToLower(lang)
	}
	return tag.String()
}
