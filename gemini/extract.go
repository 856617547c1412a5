package gemini

import (
	"encoding/json"
	"strings"

	"github.com/BaSui01/roboforge/types"
)

// Documented defaults substituted when the fallback search cannot locate a
// field anywhere in the reply.
const (
	defaultName        = "Unknown Robot"
	defaultLore        = "No lore available."
	defaultDescription = "A standard mechanical combat robot."
	defaultHP          = 1000
	defaultATK         = 50
	defaultDEF         = 20
)

// decodeStats parses the model's JSON reply. The strict path expects the
// requested flat object; when the reply is parseable JSON of any other
// shape (wrapped, nested, renamed keys), the fields are recovered by a
// case-insensitive recursive key search with documented defaults.
func decodeStats(raw string) (*types.RobotStats, error) {
	var stats types.RobotStats
	if err := json.Unmarshal([]byte(raw), &stats); err == nil && complete(&stats) {
		return &stats, nil
	}

	var tree any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, types.NewError(types.ErrDecodeFailed, "stats reply is not valid JSON").WithCause(err)
	}

	stats = types.RobotStats{
		Name:              stringOr(tree, defaultName, "name"),
		Lore:              stringOr(tree, defaultLore, "lore"),
		HP:                intOr(tree, defaultHP, "hp"),
		ATK:               intOr(tree, defaultATK, "atk"),
		DEF:               intOr(tree, defaultDEF, "def"),
		VisualDescription: stringOr(tree, defaultDescription, "visual_description", "visualdescription", "visual_description_en"),
	}
	return &stats, nil
}

// complete reports whether the strict decode produced every field. JSON
// unmarshaling leaves absent fields at their zero value without erroring,
// so a wrapped object would otherwise pass the strict path silently empty.
func complete(s *types.RobotStats) bool {
	return s.Name != "" && s.Lore != "" && s.VisualDescription != "" &&
		s.HP != 0 && s.ATK != 0 && s.DEF != 0
}

func stringOr(tree any, fallback string, keys ...string) string {
	if v, ok := findString(tree, keys); ok {
		return v
	}
	return fallback
}

func intOr(tree any, fallback int, keys ...string) int {
	if v, ok := findInt(tree, keys); ok {
		return v
	}
	return fallback
}

// findString walks the decoded JSON tree (objects, arrays, scalars) looking
// for a string value under any of the given keys, compared case-insensitively.
func findString(tree any, keys []string) (string, bool) {
	switch node := tree.(type) {
	case map[string]any:
		for k, v := range node {
			if matchesKey(k, keys) {
				if s, ok := v.(string); ok {
					return s, true
				}
			}
		}
		for _, v := range node {
			if s, ok := findString(v, keys); ok {
				return s, true
			}
		}
	case []any:
		for _, v := range node {
			if s, ok := findString(v, keys); ok {
				return s, true
			}
		}
	}
	return "", false
}

// findInt is the numeric counterpart of findString. JSON numbers decode as
// float64; values are truncated toward zero.
func findInt(tree any, keys []string) (int, bool) {
	switch node := tree.(type) {
	case map[string]any:
		for k, v := range node {
			if matchesKey(k, keys) {
				if f, ok := v.(float64); ok {
					return int(f), true
				}
			}
		}
		for _, v := range node {
			if n, ok := findInt(v, keys); ok {
				return n, true
			}
		}
	case []any:
		for _, v := range node {
			if n, ok := findInt(v, keys); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func matchesKey(key string, keys []string) bool {
	for _, k := range keys {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}
