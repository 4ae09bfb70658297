// Package modelcaps maps model identifiers to their context and output
// token ceilings. Vendor naming drifts constantly (dated snapshots, mini
// variants, punctuation differences), so lookups go through an alias
// normalization step first and always degrade to a conservative default
// instead of failing: this table gates request construction and must
// never be the thing that takes a request down.
package modelcaps

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Limits holds the per-model token ceilings.
type Limits struct {
	MaxContextLength int `json:"max_context_length"`
	MaxOutputTokens  int `json:"max_output_tokens"`
}

// DefaultLimits is the conservative fallback for unrecognized models.
var DefaultLimits = Limits{MaxContextLength: 16000, MaxOutputTokens: 4000}

var table = map[string]Limits{
	// OpenAI
	"gpt-4o":        {MaxContextLength: 128000, MaxOutputTokens: 16384},
	"gpt-4o-mini":   {MaxContextLength: 128000, MaxOutputTokens: 16384},
	"gpt-4-turbo":   {MaxContextLength: 128000, MaxOutputTokens: 4096},
	"gpt-4":         {MaxContextLength: 8192, MaxOutputTokens: 8192},
	"gpt-3.5-turbo": {MaxContextLength: 16385, MaxOutputTokens: 4096},
	"o1":            {MaxContextLength: 200000, MaxOutputTokens: 100000},
	"o1-mini":       {MaxContextLength: 128000, MaxOutputTokens: 65536},

	// Anthropic
	"claude-3-5-sonnet": {MaxContextLength: 200000, MaxOutputTokens: 8192},
	"claude-3-5-haiku":  {MaxContextLength: 200000, MaxOutputTokens: 8192},
	"claude-3-opus":     {MaxContextLength: 200000, MaxOutputTokens: 4096},
	"claude-3-haiku":    {MaxContextLength: 200000, MaxOutputTokens: 4096},

	// Google
	"gemini-1.5-pro":   {MaxContextLength: 2000000, MaxOutputTokens: 8192},
	"gemini-1.5-flash": {MaxContextLength: 1000000, MaxOutputTokens: 8192},
	"gemini-2.0-flash": {MaxContextLength: 1000000, MaxOutputTokens: 8192},
	"gemini-2.5-pro":   {MaxContextLength: 1000000, MaxOutputTokens: 65536},
	"gemini-2.5-flash": {MaxContextLength: 1000000, MaxOutputTokens: 65536},
}

// aliasRules maps vendor naming drift onto canonical keys. Ordered, first
// match wins. Every target key must exist in the table above.
var aliasRules = []struct {
	pattern   *regexp.Regexp
	canonical string
}{
	{regexp.MustCompile(`^gpt-4o-mini`), "gpt-4o-mini"},
	{regexp.MustCompile(`^gpt-4o`), "gpt-4o"},
	{regexp.MustCompile(`^chatgpt-4o`), "gpt-4o"},
	{regexp.MustCompile(`^gpt-4-turbo`), "gpt-4-turbo"},
	{regexp.MustCompile(`^gpt-4\.1`), "gpt-4o"},
	{regexp.MustCompile(`^gpt-3\.5`), "gpt-3.5-turbo"},
	{regexp.MustCompile(`^o1-mini`), "o1-mini"},
	{regexp.MustCompile(`^o1($|-)`), "o1"},
	{regexp.MustCompile(`^claude-3\.5-sonnet`), "claude-3-5-sonnet"},
	{regexp.MustCompile(`^claude-3-5-sonnet`), "claude-3-5-sonnet"},
	{regexp.MustCompile(`^claude-3\.5-haiku`), "claude-3-5-haiku"},
	{regexp.MustCompile(`^claude-3-5-haiku`), "claude-3-5-haiku"},
	{regexp.MustCompile(`^claude-3-opus`), "claude-3-opus"},
	{regexp.MustCompile(`^claude-3-haiku`), "claude-3-haiku"},
	{regexp.MustCompile(`^gemini-1\.5-pro`), "gemini-1.5-pro"},
	{regexp.MustCompile(`^gemini-1\.5-flash`), "gemini-1.5-flash"},
	{regexp.MustCompile(`^gemini-2\.0-flash`), "gemini-2.0-flash"},
	{regexp.MustCompile(`^gemini-2\.5-pro`), "gemini-2.5-pro"},
	{regexp.MustCompile(`^gemini-2\.5-flash`), "gemini-2.5-flash"},
}

// substringGroups is the second lookup tier: each canonical key lists
// substrings that identify it when normalization produced no exact hit.
var substringGroups = []struct {
	canonical  string
	substrings []string
}{
	{"gpt-4o-mini", []string{"4o-mini"}},
	{"gpt-4o", []string{"gpt-4o", "chatgpt"}},
	{"o1-mini", []string{"o1-mini"}},
	{"claude-3-5-sonnet", []string{"sonnet"}},
	{"claude-3-5-haiku", []string{"claude-3-5-haiku"}},
	{"claude-3-opus", []string{"opus"}},
	{"claude-3-haiku", []string{"haiku"}},
	{"gemini-2.5-flash", []string{"gemini-2.5-flash"}},
	{"gemini-2.5-pro", []string{"gemini-2.5-pro"}},
	{"gemini-1.5-flash", []string{"flash"}},
	{"gemini-1.5-pro", []string{"gemini"}},
}

// dateSuffixRe strips dated snapshot suffixes like -20240620 or -202406.
var dateSuffixRe = regexp.MustCompile(`-20\d{6,8}$`)

// Normalize folds a model identifier to its canonical key: lowercase,
// underscores unified to dashes, whitespace stripped, date suffix removed,
// then the ordered alias rules applied (first match wins). Idempotent.
func Normalize(model string) string {
	key := strings.ToLower(strings.TrimSpace(model))
	key = strings.ReplaceAll(key, "_", "-")
	key = strings.ReplaceAll(key, " ", "")
	key = dateSuffixRe.ReplaceAllString(key, "")

	for _, rule := range aliasRules {
		if rule.pattern.MatchString(key) {
			return rule.canonical
		}
	}
	return key
}

// Lookup resolves the limits for a model. It never fails: unrecognized
// identifiers degrade through substring rules, then a coarse family
// fallback, then DefaultLimits with a logged warning.
func Lookup(model string, logger *zap.Logger) Limits {
	key := Normalize(model)

	if limits, ok := table[key]; ok {
		return limits
	}

	for _, group := range substringGroups {
		for _, sub := range group.substrings {
			if strings.Contains(key, sub) {
				return table[group.canonical]
			}
		}
	}

	// coarse family fallback by prefix
	switch {
	case strings.HasPrefix(key, "gpt-4"):
		return table["gpt-4o"]
	case strings.HasPrefix(key, "gpt-"):
		return table["gpt-3.5-turbo"]
	case strings.HasPrefix(key, "claude"):
		return table["claude-3-5-sonnet"]
	case strings.HasPrefix(key, "gemini"):
		return table["gemini-1.5-pro"]
	}

	if logger != nil {
		logger.Warn("unknown model, using default limits",
			zap.String("model", model),
			zap.String("normalized", key),
		)
	}
	return DefaultLimits
}

// EstimateTokens approximates the token count of a text as ceil(runes/3.5).
// This is a heuristic tuned for Portuguese prose, not a real tokenizer;
// treat the result as a sizing hint, never an exact accounting. Counting
// runes rather than bytes keeps accented letters from counting double.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 3.5))
}

// Fit is the result of a pre-flight limit check.
type Fit struct {
	Fits            bool   `json:"fits"`
	PromptTokens    int    `json:"prompt_tokens"`
	OutputTokens    int    `json:"output_tokens"`
	TotalNeeded     int    `json:"total_needed"`
	RemainingTokens int    `json:"remaining_tokens"`
	Limits          Limits `json:"limits"`
}

// FitsInLimits checks whether a prompt plus the desired output budget fits
// the model's window. Pure; callers use it to pre-flight requests, the
// generation service itself does not enforce it.
func FitsInLimits(model, prompt string, desiredOutput int, logger *zap.Logger) Fit {
	limits := Lookup(model, logger)

	promptTokens := EstimateTokens(prompt)
	outputTokens := desiredOutput
	if outputTokens <= 0 {
		outputTokens = limits.MaxOutputTokens
	}
	if outputTokens > limits.MaxOutputTokens {
		outputTokens = limits.MaxOutputTokens
	}

	total := promptTokens + outputTokens
	return Fit{
		Fits:            total <= limits.MaxContextLength,
		PromptTokens:    promptTokens,
		OutputTokens:    outputTokens,
		TotalNeeded:     total,
		RemainingTokens: limits.MaxContextLength - total,
		Limits:          limits,
	}
}
