package validation

import (
	"regexp"
	"strings"
	"sync"
)

var (
	groupPatternsMu sync.Mutex
	groupPatterns   = map[string]*regexp.Regexp{}
)

func groupPattern(prefix string) *regexp.Regexp {
	groupPatternsMu.Lock()
	defer groupPatternsMu.Unlock()
	if re, ok := groupPatterns[prefix]; ok {
		return re
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_([0-9]+)$`)
	groupPatterns[prefix] = re
	return re
}

// ParseGroupIDs extracts group ids from role tokens of the form
// <prefix>_<digits>. The prefix is stripped and leading zeros are removed,
// so "PREFIX_007" yields "7". Tokens may themselves be comma separated.
// Non-matching tokens are ignored.
func ParseGroupIDs(roles []string, prefix string) []string {
	if prefix == "" {
		return nil
	}
	re := groupPattern(prefix)
	seen := make(map[string]struct{})
	var ids []string
	for _, role := range roles {
		for _, tok := range strings.Split(role, ",") {
			m := re.FindStringSubmatch(strings.TrimSpace(tok))
			if m == nil {
				continue
			}
			id := NormalizeGroupID(m[1])
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// NormalizeGroupID strips leading zeros from a digit string. An all-zero
// string normalizes to "0".
func NormalizeGroupID(id string) string {
	id = strings.TrimSpace(id)
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" && id != "" {
		return "0"
	}
	return trimmed
}

// Intersects reports whether any id appears in the allow-list. Allow-list
// entries are normalized the same way as parsed ids.
func Intersects(ids, allow []string) bool {
	if len(ids) == 0 || len(allow) == 0 {
		return false
	}
	allowed := make(map[string]struct{}, len(allow))
	for _, a := range allow {
		allowed[NormalizeGroupID(a)] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := allowed[id]; ok {
			return true
		}
	}
	return false
}
