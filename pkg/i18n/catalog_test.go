package i18n

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/tendant/simple-sso/pkg/reason"
)

func TestEmbeddedCatalogCoversEveryReason(t *testing.T) {
	c, err := LoadEmbedded()
	require.NoError(t, err)

	for _, tag := range []language.Tag{language.English, language.German} {
		for _, r := range reason.All() {
			m := c.Translate(tag, r)
			assert.NotEmpty(t, m.Matter, "%s %s", tag, r)
			assert.NotEmpty(t, m.HowToFix, "%s %s", tag, r)
			assert.NotEmpty(t, m.Explanation, "%s %s", tag, r)
		}
	}
}

func TestTranslate(t *testing.T) {
	c := MustLoadEmbedded()

	en := c.Translate(language.English, reason.InvalidEmail)
	assert.Equal(t, "Your account has no valid email address.", en.Matter)

	de := c.Translate(language.MustParse("de-AT"), reason.InvalidEmail)
	assert.Equal(t, "Ihr Konto hat keine gültige E-Mail-Adresse.", de.Matter)

	fr := c.Translate(language.French, reason.InvalidEmail)
	assert.Equal(t, en, fr, "unsupported languages fall back to English")

	unknown := c.Translate(language.English, reason.Reason("Bogus"))
	assert.Equal(t, c.Translate(language.English, reason.Unexpected), unknown)
}

func TestPartialLocaleFallsBackPerPart(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en/abort.yaml": {Data: []byte(baseYAML())},
		"locales/de/abort.yaml": {Data: []byte("locale: de\nmessages:\n  InvalidState:\n    matter: Ungültig\n")},
	}
	c, err := LoadFromFS(fsys, language.English)
	require.NoError(t, err)

	m := c.Translate(language.German, reason.InvalidState)
	assert.Equal(t, "Ungültig", m.Matter)
	assert.Equal(t, "fix InvalidState", m.HowToFix)
}

func TestLoadFromFSRejectsBadCatalogs(t *testing.T) {
	_, err := LoadFromFS(fstest.MapFS{}, language.English)
	assert.Error(t, err)

	_, err = LoadFromFS(fstest.MapFS{
		"locales/en/abort.yaml": {Data: []byte("locale: en\nmessages:\n  InvalidState:\n    matter: x\n")},
	}, language.English)
	assert.Error(t, err, "base locale must cover every reason")

	_, err = LoadFromFS(fstest.MapFS{
		"locales/en/abort.yaml": {Data: []byte(baseYAML() + "  Bogus:\n    matter: x\n")},
	}, language.English)
	assert.Error(t, err)
}

func TestResolveTag(t *testing.T) {
	c := MustLoadEmbedded()

	r := httptest.NewRequest(http.MethodGet, "/sso/frontend/callback?lang=de", nil)
	assert.Equal(t, language.German, c.ResolveTag(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: LangCookieName, Value: "de"})
	assert.Equal(t, language.German, c.ResolveTag(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept-Language", "fr-CH, de;q=0.8, en;q=0.5")
	assert.Equal(t, language.German, c.ResolveTag(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, language.English, c.ResolveTag(r))
	assert.Equal(t, language.English, c.ResolveTag(nil))
}

func baseYAML() string {
	s := "locale: en\nmessages:\n"
	for _, r := range reason.All() {
		s += "  " + string(r) + ":\n    matter: matter " + string(r) + "\n    how_to_fix: fix " + string(r) + "\n"
	}
	return s
}
