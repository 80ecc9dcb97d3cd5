package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"uplus-loyalty/internal/domain"
)

//go:embed locales
var LocalesFS embed.FS

type Translator struct {
	translations map[string]string
	fallback     *Translator
}

// NewTranslator loads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	return &Translator{translations: translations}, nil
}

// T translates key, formatting args into it. Unknown keys fall back to the
// default language, then to the key itself.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		if t.fallback != nil {
			return t.fallback.T(key, args...)
		}
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Bundle holds every embedded language keyed by code.
type Bundle struct {
	def   string
	langs map[string]*Translator
}

// NewBundle loads all locales in fsys. def must be among them.
func NewBundle(fsys fs.FS, def string) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	b := &Bundle{def: def, langs: make(map[string]*Translator)}
	for _, e := range entries {
		code, ok := strings.CutSuffix(e.Name(), ".yaml")
		if !ok || e.IsDir() {
			continue
		}
		tr, err := NewTranslator(fsys, code)
		if err != nil {
			return nil, err
		}
		b.langs[code] = tr
	}
	base, ok := b.langs[def]
	if !ok {
		return nil, fmt.Errorf("default locale %q not found", def)
	}
	for code, tr := range b.langs {
		if code != def {
			tr.fallback = base
		}
	}
	return b, nil
}

// For picks the best language from an Accept-Language style list such as
// "ms-MY,ms;q=0.9,en;q=0.8". Quality weights are ignored; order wins.
func (b *Bundle) For(accept string) *Translator {
	for _, part := range strings.Split(accept, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		tag = strings.ToLower(tag)
		if tr, ok := b.langs[tag]; ok {
			return tr
		}
		if base, _, found := strings.Cut(tag, "-"); found {
			if tr, ok := b.langs[base]; ok {
				return tr
			}
		}
	}
	return b.langs[b.def]
}

// Error renders a member-facing message for err.
func (t *Translator) Error(err error) string {
	var (
		ierr *domain.InsufficientPointsError
		verr *domain.ValidationError
		aerr *domain.AuthenticationError
	)
	switch {
	case errors.As(err, &ierr):
		return t.T("insufficient_points", ierr.Shortfall)
	case errors.As(err, &verr):
		return t.T("invalid_input", verr.Field, verr.Message)
	case errors.As(err, &aerr):
		return t.T("sign_in_failed", aerr.Message)
	case errors.Is(err, domain.ErrInsufficientPoints):
		return t.T("redemption_failed")
	case errors.Is(err, domain.ErrNotAuthenticated):
		return t.T("sign_in_required")
	case errors.Is(err, domain.ErrProfileNotLoaded):
		return t.T("profile_unavailable")
	case errors.Is(err, domain.ErrProfileFetch):
		return t.T("profile_fetch_failed")
	case errors.Is(err, domain.ErrNotFound):
		return t.T("reward_not_found")
	case errors.Is(err, domain.ErrRedemptionFailed):
		return t.T("redemption_failed")
	case errors.Is(err, domain.ErrRedemptionState):
		return t.T("redemption_in_progress")
	}
	return t.T("internal_error")
}
