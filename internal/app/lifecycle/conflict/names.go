package conflict

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/dalemusser/waffle/pantry/text"
)

// NameKey folds a full name (lowercase, diacritics stripped) and returns it
// with its distinct tokens.
func NameKey(fullName string) (folded string, tokens []string) {
	fields := strings.Fields(text.Fold(fullName))
	folded = strings.Join(fields, " ")
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return folded, tokens
}

// Similarity scores two names in [0, 1]. Token order is ignored, so
// "Amine El Idrissi" and "El Idrissi Amine" score 1.
func Similarity(a, b string) float64 {
	_, ta := NameKey(a)
	_, tb := NameKey(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	sort.Strings(ta)
	sort.Strings(tb)
	sa, sb := strings.Join(ta, " "), strings.Join(tb, " ")
	if sa == sb {
		return 1
	}
	longest := utf8.RuneCountInString(sa)
	if n := utf8.RuneCountInString(sb); n > longest {
		longest = n
	}
	return 1 - float64(levenshtein.ComputeDistance(sa, sb))/float64(longest)
}
