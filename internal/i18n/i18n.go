// Package i18n renders user-facing messages. Handlers pass message keys and
// the language negotiated for the request; catalogs are embedded JSON.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localesFS embed.FS

type ctxKey struct{}

const langKey = "lang"

// Bundle holds the catalogs of every supported language.
type Bundle struct {
	catalogs map[string]map[string]string
	fallback string
	langs    []string
	matcher  language.Matcher
}

// NewBundle loads the embedded catalogs. defaultLang must be one of them.
func NewBundle(defaultLang string) (*Bundle, error) {
	files, err := fs.Glob(localesFS, "locales/*.json")
	if err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}

	catalogs := make(map[string]map[string]string, len(files))
	for _, file := range files {
		data, err := localesFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", file, err)
		}
		var messages map[string]string
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", file, err)
		}
		catalogs[strings.TrimSuffix(path.Base(file), ".json")] = messages
	}

	defaultLang = strings.ToLower(strings.TrimSpace(defaultLang))
	if _, ok := catalogs[defaultLang]; !ok {
		return nil, fmt.Errorf("no catalog for default language %q", defaultLang)
	}

	// The default goes first so it is what the matcher falls back to.
	langs := []string{defaultLang}
	others := make([]string, 0, len(catalogs)-1)
	for lang := range catalogs {
		if lang != defaultLang {
			others = append(others, lang)
		}
	}
	sort.Strings(others)
	langs = append(langs, others...)

	tags := make([]language.Tag, 0, len(langs))
	for _, lang := range langs {
		tags = append(tags, language.Make(lang))
	}

	return &Bundle{
		catalogs: catalogs,
		fallback: defaultLang,
		langs:    langs,
		matcher:  language.NewMatcher(tags),
	}, nil
}

// Default returns the fallback language.
func (b *Bundle) Default() string {
	return b.fallback
}

// Translate formats key in lang, falling back to the default language and
// then to the key itself.
func (b *Bundle) Translate(lang, key string, args ...any) string {
	msg, ok := b.catalogs[lang][key]
	if !ok {
		msg, ok = b.catalogs[b.fallback][key]
	}
	if !ok {
		msg = key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// T translates key in the language stored in ctx.
func (b *Bundle) T(ctx context.Context, key string, args ...any) string {
	return b.Translate(b.Lang(ctx), key, args...)
}

// Lang returns the negotiated language stored in ctx, or the default.
func (b *Bundle) Lang(ctx context.Context) string {
	if ctx != nil {
		if lang, ok := ctx.Value(ctxKey{}).(string); ok && lang != "" {
			return lang
		}
	}
	return b.fallback
}

// Negotiate picks a language from an explicit choice, then Accept-Language.
func (b *Bundle) Negotiate(explicit, acceptLanguage string) string {
	if explicit = strings.ToLower(strings.TrimSpace(explicit)); explicit != "" {
		if _, ok := b.catalogs[explicit]; ok {
			return explicit
		}
	}
	if acceptLanguage == "" {
		return b.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.fallback
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(b.langs) {
		return b.fallback
	}
	return b.langs[idx]
}

// Middleware negotiates the language from ?lang= and Accept-Language and
// stores it in the request context.
func Middleware(b *Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := b.Negotiate(c.Query(langKey), c.GetHeader("Accept-Language"))
		c.Set(langKey, lang)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, lang))
		c.Next()
	}
}
