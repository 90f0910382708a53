// internal/render/render.go
package render

import "regexp"

// Two placeholder syntaxes are accepted: "{{ key }}" (whitespace
// tolerant) and "{key}". Double-brace placeholders are substituted
// first so the single-brace pattern never sees their inner braces.
var (
	doubleBracePattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)
	singleBracePattern = regexp.MustCompile(`\{([A-Za-z0-9_.-]+)\}`)
)

// Render substitutes placeholders in template with values from vars.
// A placeholder whose key is missing from vars is left unchanged so
// the gap stays visible instead of silently rendering blank. Render
// never fails and has no side effects.
//
// Rendering twice is only guaranteed to equal rendering once when the
// template contains no literal brace text that collides with a
// variable name; that is a documented limitation.
func Render(template string, vars map[string]string) string {
	out := doubleBracePattern.ReplaceAllStringFunc(template, func(match string) string {
		key := doubleBracePattern.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
	return singleBracePattern.ReplaceAllStringFunc(out, func(match string) string {
		key := singleBracePattern.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}

// Merge combines a base variable set with overrides, overrides winning
// on key collision. Neither input map is mutated.
func Merge(base, overrides map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
