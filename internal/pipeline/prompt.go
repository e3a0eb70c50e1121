package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/SFitz911/sfitz911-avatar-generator/internal/domain"
)

// BuildPrompt composes the diffusion prompt from the request text and
// language. When a reference image conditions the generation the template
// keeps the scene description minimal so the image dominates.
func BuildPrompt(p domain.Params, hasReference bool) string {
	lang := cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(p.Language)))
	if lang == "" {
		lang = domain.DefaultLanguage
	}
	if hasReference {
		return fmt.Sprintf(
			"A professional person speaking fluently in %s. They say: %q Clear pronunciation, engaging eye contact, natural gestures, modern setting, professional appearance.",
			lang, p.Text)
	}
	return fmt.Sprintf(
		"A professional person speaking fluently in %s. They say: %q Clear articulation, warm smile, modern office background, natural lighting, confident expression.",
		lang, p.Text)
}
