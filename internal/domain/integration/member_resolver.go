package integration

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MatchRule names the rule that matched a collaborator to a user.
type MatchRule string

const (
	// MatchExact: normalized full names are equal
	MatchExact MatchRule = "EXACT"
	// MatchContains: one name's words appear, in order and adjacent, inside the other
	MatchContains MatchRule = "CONTAINS"
	// MatchFirstWord: the given names are equal
	MatchFirstWord MatchRule = "FIRST_WORD"
)

// MemberMatch is a successful collaborator resolution.
type MemberMatch struct {
	UserID   uuid.UUID
	UserName string
	Rule     MatchRule
}

// ResolveMember matches a collaborator display name against local users.
//
// Rules are tried in order and the first user hit by the earliest rule wins:
// exact name, word-aligned containment either way, then given-name equality.
// Comparison ignores case, accents and repeated whitespace. When nothing
// fires the second return value is false; callers must not guess.
func ResolveMember(displayName string, users []CandidateUser) (MemberMatch, bool) {
	target := nameWords(displayName)
	if len(target) == 0 || len(users) == 0 {
		return MemberMatch{}, false
	}

	candidates := make([][]string, len(users))
	for i, u := range users {
		candidates[i] = nameWords(u.Name)
	}

	rules := []struct {
		rule  MatchRule
		match func(a, b []string) bool
	}{
		{MatchExact, wordsEqual},
		{MatchContains, func(a, b []string) bool { return containsWords(a, b) || containsWords(b, a) }},
		{MatchFirstWord, func(a, b []string) bool { return a[0] == b[0] }},
	}

	for _, r := range rules {
		for i, words := range candidates {
			if len(words) == 0 {
				continue
			}
			if r.match(target, words) {
				return MemberMatch{UserID: users[i].ID, UserName: users[i].Name, Rule: r.rule}, true
			}
		}
	}
	return MemberMatch{}, false
}

// NormalizeName folds case, strips diacritics and collapses whitespace.
func NormalizeName(name string) string {
	return strings.Join(nameWords(name), " ")
}

func nameWords(name string) []string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		name,
	)
	if err != nil {
		stripped = name
	}
	// Casers keep state, so one per call.
	return strings.Fields(cases.Fold().String(stripped))
}

func wordsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// containsWords reports whether needle occurs as a contiguous word run in haystack.
func containsWords(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for start := 0; start+len(needle) <= len(haystack); start++ {
		if wordsEqual(haystack[start:start+len(needle)], needle) {
			return true
		}
	}
	return false
}
