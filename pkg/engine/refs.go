package engine

import (
	"fmt"
	"regexp"
)

// templateRefPattern recognises ${type:name.output}. type is itself a
// colon-joined <domain>:<category>:<kind> (or shorter), name is the
// caller-supplied resource name, output is the learned field captured. Per
// the design notes this is deliberately a single regex, not an expression
// evaluator: any other ${...} form is a validation error, left to the caller
// that discovers an unmatched "${" to raise.
var templateRefPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+(?::[A-Za-z0-9_]+)*):([A-Za-z0-9_.\-]+)\.([A-Za-z0-9_]+)\}`)

// ExtractTemplateRefs walks every string value reachable from v (recursing
// into maps and slices) and returns a Reference for each ${type:name.output}
// match found, deduplicated by (targetID, output, path).
func ExtractTemplateRefs(v interface{}) []Reference {
	seen := map[string]bool{}
	var refs []Reference
	walkStrings(v, "", func(path, s string) {
		for _, m := range templateRefPattern.FindAllStringSubmatch(s, -1) {
			targetID := m[1] + ":" + m[2]
			key := targetID + "|" + m[3] + "|" + path
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, Reference{
				TargetID: targetID,
				Kind:     DependencyReference,
				Output:   m[3],
				Path:     path,
			})
		}
	})
	return refs
}

func walkStrings(v interface{}, path string, visit func(path, s string)) {
	switch val := v.(type) {
	case string:
		visit(path, val)
	case map[string]interface{}:
		for k, child := range val {
			walkStrings(child, joinPath(path, k), visit)
		}
	case []interface{}:
		for i, child := range val {
			walkStrings(child, fmt.Sprintf("%s[%d]", path, i), visit)
		}
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}
