// Package i18n turns abort reasons into localized user-facing messages.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-sso/pkg/reason"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "sso_lang"
)

// Message is the user-facing triple shown after an aborted login.
type Message struct {
	Matter      string `json:"matter"`
	HowToFix    string `json:"how_to_fix,omitempty"`
	Explanation string `json:"explanation,omitempty"`
}

// Translator turns an abort reason into a localized message.
type Translator interface {
	Translate(tag language.Tag, r reason.Reason) Message
}

type localeFile struct {
	Locale   string                  `yaml:"locale"`
	Messages map[string]localeString `yaml:"messages"`
}

type localeString struct {
	Matter      string `yaml:"matter"`
	HowToFix    string `yaml:"how_to_fix"`
	Explanation string `yaml:"explanation"`
}

//go:embed locales/*/*.yaml
var embeddedLocales embed.FS

// Catalog is a Translator backed by an x/text message catalog.
type Catalog struct {
	builder   *catalog.Builder
	base      language.Tag
	supported []language.Tag
	matcher   language.Matcher
	keys      map[language.Tag]map[string]struct{}
}

// LoadEmbedded loads the locale files shipped with this package.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedLocales, language.English)
}

// MustLoadEmbedded is LoadEmbedded for package initialization.
func MustLoadEmbedded() *Catalog {
	c, err := LoadEmbedded()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFromFS loads locales/<tag>/*.yaml from fsys. base must be present.
func LoadFromFS(fsys fs.FS, base language.Tag) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(base)),
		base:    base,
		keys:    make(map[language.Tag]map[string]struct{}),
	}

	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		var lf localeFile
		if err := yaml.Unmarshal(data, &lf); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		tag, err := language.Parse(strings.TrimSpace(lf.Locale))
		if err != nil {
			return nil, fmt.Errorf("%s: invalid locale %q: %w", path, lf.Locale, err)
		}
		if err := c.add(tag, lf.Messages); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if _, ok := c.keys[base]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", base)
	}
	for _, r := range reason.All() {
		if !c.has(base, key(r, "matter")) {
			return nil, fmt.Errorf("base locale %s has no message for %s", base, r)
		}
	}

	// base first so the matcher falls back to it
	c.supported = append(c.supported, base)
	for tag := range c.keys {
		if tag != base {
			c.supported = append(c.supported, tag)
		}
	}
	rest := c.supported[1:]
	sort.Slice(rest, func(i, j int) bool {
		return rest[i].String() < rest[j].String()
	})
	c.matcher = language.NewMatcher(c.supported)
	return c, nil
}

func key(r reason.Reason, part string) string {
	return string(r) + "." + part
}

func (c *Catalog) add(tag language.Tag, msgs map[string]localeString) error {
	set := c.keys[tag]
	if set == nil {
		set = make(map[string]struct{})
		c.keys[tag] = set
	}
	for name, m := range msgs {
		r := reason.Reason(strings.TrimSpace(name))
		if !r.Known() {
			return fmt.Errorf("unknown reason %q", name)
		}
		for part, text := range map[string]string{
			"matter":      m.Matter,
			"how_to_fix":  m.HowToFix,
			"explanation": m.Explanation,
		} {
			if text == "" {
				continue
			}
			k := key(r, part)
			if err := c.builder.SetString(tag, k, text); err != nil {
				return err
			}
			set[k] = struct{}{}
		}
	}
	return nil
}

func (c *Catalog) has(tag language.Tag, k string) bool {
	_, ok := c.keys[tag][k]
	return ok
}

// Supported returns the loaded languages, base first.
func (c *Catalog) Supported() []language.Tag {
	out := make([]language.Tag, len(c.supported))
	copy(out, c.supported)
	return out
}

// Match maps any tag onto a loaded language.
func (c *Catalog) Match(tags ...language.Tag) language.Tag {
	if len(tags) == 0 {
		return c.base
	}
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return c.base
	}
	return c.supported[idx]
}

// Translate returns the message for r in the closest loaded language. Parts
// missing in that language come from the base language; unknown reasons get
// the Unexpected message.
func (c *Catalog) Translate(tag language.Tag, r reason.Reason) Message {
	if !r.Known() {
		r = reason.Unexpected
	}
	lang := c.Match(tag)
	return Message{
		Matter:      c.lookup(lang, key(r, "matter")),
		HowToFix:    c.lookup(lang, key(r, "how_to_fix")),
		Explanation: c.lookup(lang, key(r, "explanation")),
	}
}

func (c *Catalog) lookup(lang language.Tag, k string) string {
	if !c.has(lang, k) {
		if !c.has(c.base, k) {
			return ""
		}
		lang = c.base
	}
	p := message.NewPrinter(lang, message.Catalog(c.builder))
	return p.Sprintf(k)
}

// ResolveTag determines the language for a request from the lang query
// parameter, the language cookie and Accept-Language, in that order.
func (c *Catalog) ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return c.base
	}
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if tag, err := language.Parse(v); err == nil {
			return c.Match(tag)
		}
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, err := language.Parse(cookie.Value); err == nil {
			return c.Match(tag)
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return c.Match(tags...)
		}
	}
	return c.base
}
