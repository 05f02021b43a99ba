package profile

import (
	"encoding/json"
	"regexp"
)

// The model is prompted to embed profile updates in its reply inside
// <profile_update>...</profile_update> blocks carrying a JSON Delta. The
// blocks are stripped before fragments reach the client by the prompt
// contract, not here; extraction only runs over the completed turn.
var updateBlockRe = regexp.MustCompile(`(?s)<profile_update>\s*(\{.*?\})\s*</profile_update>`)

// ExtractDelta mines one assistant turn for profile updates. Malformed
// blocks are ignored, extraction is best-effort.
func ExtractDelta(content string) (Delta, bool) {
	matches := updateBlockRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return Delta{}, false
	}

	merged := Delta{}
	for _, m := range matches {
		var d Delta
		if err := json.Unmarshal([]byte(m[1]), &d); err != nil {
			continue
		}
		merged = mergeDeltas(merged, d)
	}
	if merged.Empty() {
		return Delta{}, false
	}
	return merged, true
}

// mergeDeltas folds b into a; later blocks win on scalar and map-key
// conflicts, list values accumulate.
func mergeDeltas(a, b Delta) Delta {
	if len(b.Scalars) > 0 {
		if a.Scalars == nil {
			a.Scalars = map[string]any{}
		}
		for k, v := range b.Scalars {
			a.Scalars[k] = v
		}
	}
	if len(b.Lists) > 0 {
		if a.Lists == nil {
			a.Lists = map[string][]string{}
		}
		for k, vals := range b.Lists {
			a.Lists[k] = unionStable(a.Lists[k], vals)
		}
	}
	if len(b.Maps) > 0 {
		if a.Maps == nil {
			a.Maps = map[string]map[string]string{}
		}
		for k, m := range b.Maps {
			if a.Maps[k] == nil {
				a.Maps[k] = map[string]string{}
			}
			for mk, mv := range m {
				a.Maps[k][mk] = mv
			}
		}
	}
	return a
}
