// Package jsonrepair recovers structured values from LLM output that is
// supposed to be JSON but frequently is not: wrapped in markdown fences,
// truncated mid-array, or written with unquoted keys. Providers give no
// hard well-formedness guarantee even in JSON mode, especially under
// token truncation, so every consumer of schema-constrained output goes
// through Parse instead of encoding/json directly.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const excerptLimit = 500

// ParseError is returned when every recovery strategy has been exhausted.
// Source identifies the caller (e.g. "gemini:structured") and Excerpt holds
// the head of the offending input for debugging.
type ParseError struct {
	Source  string
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("jsonrepair: no strategy recovered %s output (direct parse: %v): %q", e.Source, e.Err, e.Excerpt)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	bareValueRe     = regexp.MustCompile(`:\s*([A-Za-z_][A-Za-z0-9_.-]*)(\s*[,}\]])`)
	numberRe        = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)
)

// Parse attempts to decode raw as JSON, trying progressively more invasive
// repairs. Strategies run in order, first success wins:
//
//  1. direct parse of the trimmed input
//  2. markdown code fences stripped
//  3. outermost [...] span sliced out, trailing commas stripped
//  4. outermost {...} span sliced out, trailing commas stripped
//  5. heuristic repair (trailing commas, bare keys, bare scalar values)
func Parse(raw, source string) (any, error) {
	trimmed := strings.TrimSpace(raw)

	v, directErr := tryParse(trimmed)
	if directErr == nil {
		return v, nil
	}

	if inner := stripFences(trimmed); inner != "" {
		if v, err := tryParse(inner); err == nil {
			return v, nil
		}
	}

	if span := outerSpan(trimmed, '[', ']'); span != "" {
		if v, err := tryParse(stripTrailingCommas(span)); err == nil {
			return v, nil
		}
	}

	if span := outerSpan(trimmed, '{', '}'); span != "" {
		if v, err := tryParse(stripTrailingCommas(span)); err == nil {
			return v, nil
		}
	}

	if v, err := tryParse(heuristicRepair(trimmed)); err == nil {
		return v, nil
	}

	return nil, &ParseError{Source: source, Excerpt: excerptOf(trimmed), Err: directErr}
}

// excerptOf truncates to the excerpt limit without cutting a multi-byte
// rune in half; the cut point backs off to the previous rune start.
func excerptOf(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	end := excerptLimit
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

func tryParse(s string) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("empty input")
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// stripFences returns the content of the first ```...``` block, or the
// input with dangling fence markers removed when the block never closes.
func stripFences(s string) string {
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if !strings.Contains(s, "```") {
		return ""
	}
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// outerSpan slices from the first open to the last close bracket.
func outerSpan(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func stripTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

// heuristicRepair applies the most invasive fixes: trailing commas removed,
// bare identifier keys quoted, bare scalar values quoted unless they are
// JSON literals or numbers.
func heuristicRepair(s string) string {
	s = stripTrailingCommas(s)
	s = bareKeyRe.ReplaceAllString(s, `$1"$2":`)
	s = bareValueRe.ReplaceAllStringFunc(s, func(m string) string {
		sub := bareValueRe.FindStringSubmatch(m)
		val := sub[1]
		switch val {
		case "true", "false", "null":
			return m
		}
		if numberRe.MatchString(val) {
			return m
		}
		return `: "` + val + `"` + sub[2]
	})
	return s
}
