// Package postprocess recovers structured data from raw model output. Hosted
// models frequently wrap JSON in prose or markdown fences, or emit JSON with
// small syntax defects; the extraction chain here handles all of those.
package postprocess

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrJSONParse means every stage of the extraction chain failed.
var ErrJSONParse = errors.New("no parseable JSON in model output")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

const diagnosticLimit = 400

// Extract pulls the first parseable JSON value out of raw model text.
// Stages, tried in order: direct parse, fenced code block, repair pass over
// the raw text, slice between the outermost braces and repair that. The
// stage order is load-bearing; callers depend on the least-destructive
// transform winning.
func Extract(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	if gjson.Valid(trimmed) && trimmed != "" {
		return trimmed, nil
	}

	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		candidate := strings.TrimSpace(m[1])
		if gjson.Valid(candidate) && candidate != "" {
			return candidate, nil
		}
	}

	if repaired := Repair(trimmed); gjson.Valid(repaired) && repaired != "" {
		return repaired, nil
	}

	if sliced, ok := sliceBraces(raw); ok {
		if gjson.Valid(sliced) {
			return sliced, nil
		}
		if repaired := Repair(sliced); gjson.Valid(repaired) {
			return repaired, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrJSONParse, truncate(raw, diagnosticLimit))
}

// Unmarshal runs Extract and decodes the result into v.
func Unmarshal(raw string, v interface{}) error {
	text, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), v); err != nil {
		return fmt.Errorf("%w: %s", ErrJSONParse, truncate(raw, diagnosticLimit))
	}
	return nil
}

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// Repair applies a small set of syntax fixes common in model output:
// trailing commas, unquoted keys, Python-style literals, and unbalanced
// closing braces or brackets.
func Repair(s string) string {
	s = strings.TrimSpace(s)
	s = trailingComma.ReplaceAllString(s, "$1")
	s = unquotedKey.ReplaceAllString(s, `$1"$2":`)
	s = strings.ReplaceAll(s, ": True", ": true")
	s = strings.ReplaceAll(s, ": False", ": false")
	s = strings.ReplaceAll(s, ": None", ": null")

	var opens []byte
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{' || ch == '[':
			opens = append(opens, ch)
		case ch == '}' || ch == ']':
			if len(opens) > 0 {
				opens = opens[:len(opens)-1]
			}
		}
	}
	for i := len(opens) - 1; i >= 0; i-- {
		if opens[i] == '{' {
			s += "}"
		} else {
			s += "]"
		}
	}

	return s
}

func sliceBraces(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
