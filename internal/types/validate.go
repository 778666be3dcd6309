package types

import "strings"

var knownStatuses = []string{StatusOpen, StatusInProgress, StatusReview, StatusClosed, StatusDeleted}

var knownKinds = []string{KindBug, KindFeature, KindTask, KindChore, KindEpic}

// ParseStatus validates a status against the recognized set. The projection
// itself accepts any string; this is opt-in validation for callers that
// want user input checked before it reaches the log.
func ParseStatus(value string) (string, error) {
	return parseEnum("status", value, knownStatuses)
}

// ParseKind validates an issue kind against the recognized set.
func ParseKind(value string) (string, error) {
	return parseEnum("kind", value, knownKinds)
}

func parseEnum(field, value string, valid []string) (string, error) {
	for _, v := range valid {
		if v == value {
			return v, nil
		}
	}
	return "", &InvalidEnumValueError{
		Field:      field,
		Value:      value,
		Valid:      valid,
		Suggestion: closestMatch(value, valid),
	}
}

// ValidateLabelName enforces the label naming rules: non-empty after trim,
// at most 50 characters, alphanumeric plus '-' and '_'.
func ValidateLabelName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &InvalidLabelNameError{Name: name, Reason: "name is empty"}
	}
	if len(trimmed) > 50 {
		return "", &InvalidLabelNameError{Name: name, Reason: "name exceeds 50 characters"}
	}
	for _, c := range trimmed {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return "", &InvalidLabelNameError{Name: name, Reason: "only letters, digits, '-' and '_' are allowed"}
		}
	}
	return trimmed, nil
}

// closestMatch returns the candidate whose similarity to value is highest,
// or "" when nothing scores at least 0.75.
func closestMatch(value string, candidates []string) string {
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		if score := similarity(value, c); score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore >= 0.75 {
		return best
	}
	return ""
}

// similarity maps Levenshtein distance onto [0,1]: 1 means equal
// (case-insensitively), 0 means nothing in common.
func similarity(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the case-insensitive edit distance between two
// strings using a two-row rolling matrix.
func levenshtein(s1, s2 string) int {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			min := prev[j] + 1 // deletion
			if ins := curr[j-1] + 1; ins < min {
				min = ins // insertion
			}
			if sub := prev[j-1] + cost; sub < min {
				min = sub // substitution
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
