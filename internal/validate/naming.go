package validate

import (
	"strings"

	"github.com/agext/levenshtein"
)

// NamingStrategy decides whether a foreign key field name follows the naming
// convention for its target entity. The check is advisory: a mismatch is a
// warning, never an error.
type NamingStrategy interface {
	// ExpectedName returns the conventional field name for a reference into
	// the target entity.
	ExpectedName(targetEntity string) string
	// Matches reports whether the field name is acceptable for the target.
	Matches(field, targetEntity string) bool
}

// ConventionNaming is the default strategy: a reference into "customers" is
// conventionally named "customer_id", and any *_id field passes.
type ConventionNaming struct{}

func (ConventionNaming) ExpectedName(target string) string {
	return singularize(strings.ToLower(target)) + "_id"
}

func (s ConventionNaming) Matches(field, target string) bool {
	lf := strings.ToLower(field)
	if lf == s.ExpectedName(target) || lf == strings.ToLower(target)+"_id" {
		return true
	}
	return strings.HasSuffix(lf, "_id")
}

// singularize applies the plural suffix heuristics used for both naming and
// suggestion matching: categories->category, statuses->status, orders->order.
func singularize(name string) string {
	switch {
	case strings.HasSuffix(name, "ies") && len(name) > 3:
		return name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "es") && len(name) > 2:
		return name[:len(name)-2]
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") && len(name) > 1:
		return name[:len(name)-1]
	}
	return name
}

// maxSuggestDistance is the edit-distance ceiling for typo suggestions.
const maxSuggestDistance = 2

// closestName finds the single best candidate resembling the given name, for
// "did you mean" suggestions. Tried in order: case-insensitive match,
// singular/plural match, small edit distance, substring containment. Ties are
// ambiguous and yield nothing.
func closestName(name string, candidates []string) (string, bool) {
	ln := strings.ToLower(name)

	for _, c := range candidates {
		if strings.ToLower(c) == ln {
			return c, true
		}
	}
	for _, c := range candidates {
		if singularize(strings.ToLower(c)) == singularize(ln) {
			return c, true
		}
	}

	best, bestDist, ties := "", maxSuggestDistance+1, 0
	for _, c := range candidates {
		d := levenshtein.Distance(ln, strings.ToLower(c), nil)
		switch {
		case d < bestDist:
			best, bestDist, ties = c, d, 1
		case d == bestDist:
			ties++
		}
	}
	if bestDist <= maxSuggestDistance && ties == 1 {
		return best, true
	}

	var contained []string
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if len(ln) >= 3 && len(lc) >= 3 && (strings.Contains(lc, ln) || strings.Contains(ln, lc)) {
			contained = append(contained, c)
		}
	}
	if len(contained) == 1 {
		return contained[0], true
	}

	return "", false
}
