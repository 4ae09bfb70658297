// Package sanitize rewrites free-text image prompts before they reach the
// provider, swapping a fixed list of sensitive terms for softer synonyms.
// This is a best-effort client-side pre-filter: the provider still runs
// its own safety stack and the image pipeline's error mapper handles
// whatever gets rejected there.
package sanitize

import (
	"regexp"
	"strings"
)

// Placeholder is sent downstream when substitution empties the prompt.
// A request with an empty prompt is always rejected upstream, so the
// sanitizer guarantees a non-empty result.
const Placeholder = "imagem artística abstrata"

// replacements maps each sensitive term to its softer synonym. An empty
// replacement removes the term outright. Portuguese-first, matching the
// user base, with the most common English equivalents included.
var replacements = map[string]string{
	"sangue":     "tinta vermelha",
	"sangrento":  "avermelhado",
	"violencia":  "cena intensa",
	"violência":  "cena intensa",
	"violento":   "intenso",
	"arma":       "objeto metálico",
	"armas":      "objetos metálicos",
	"faca":       "utensílio",
	"morte":      "silêncio",
	"morto":      "adormecido",
	"cadaver":    "figura imóvel",
	"cadáver":    "figura imóvel",
	"ferida":     "marca",
	"tortura":    "",
	"drogas":     "",
	"nude":       "",
	"nua":        "",
	"nu":         "",
	"blood":      "red paint",
	"gore":       "",
	"violence":   "intense scene",
	"weapon":     "metallic object",
	"corpse":     "still figure",
	"explosao":   "clarão",
	"explosão":   "clarão",
	"terrorista": "",
}

var (
	termRe       *regexp.Regexp
	whitespaceRe = regexp.MustCompile(`\s+`)
)

func init() {
	terms := make([]string, 0, len(replacements))
	for term := range replacements {
		terms = append(terms, regexp.QuoteMeta(term))
	}
	// Accented characters are not word characters to \b, so the boundary is
	// expressed explicitly as start/end or a non-letter neighbour.
	termRe = regexp.MustCompile(`(?i)(^|[^\p{L}])(` + strings.Join(terms, "|") + `)($|[^\p{L}])`)
}

// Result carries the cleaned prompt and the human-readable alerts that
// describe what was altered.
type Result struct {
	Sanitized string   `json:"sanitized"`
	Alerts    []string `json:"alerts"`
}

// Sanitize scans the prompt for sensitive terms (whole words, case
// insensitive) and substitutes softer synonyms. Clean input passes through
// trimmed and untouched. Never fails and never returns an empty prompt.
func Sanitize(prompt string) Result {
	var matched []string
	seen := map[string]bool{}

	out := prompt
	// replace repeatedly: the leading/trailing context groups overlap
	// between adjacent terms, so a single pass can miss neighbours.
	for {
		loc := termRe.FindStringSubmatchIndex(out)
		if loc == nil {
			break
		}
		term := strings.ToLower(out[loc[4]:loc[5]])
		if !seen[term] {
			seen[term] = true
			matched = append(matched, term)
		}
		out = out[:loc[4]] + replacements[term] + out[loc[5]:]
	}

	if len(matched) == 0 {
		trimmed := strings.TrimSpace(prompt)
		if trimmed == "" {
			trimmed = Placeholder
		}
		return Result{Sanitized: trimmed, Alerts: []string{}}
	}

	out = strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))
	if out == "" {
		out = Placeholder
	}

	return Result{
		Sanitized: out,
		Alerts:    []string{"termos sensíveis substituídos: " + strings.Join(matched, ", ")},
	}
}
