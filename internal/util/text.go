package util

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces  = regexp.MustCompile(`\s+`)
	reNonWord = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

// NormalizeCell trims and NFC-normalises spreadsheet text so that header
// fragments and lookup keys compare equal regardless of how they were typed.
func NormalizeCell(input string) string {
	s := strings.ReplaceAll(input, "\u00A0", " ")
	return strings.TrimSpace(norm.NFC.String(s))
}

// foldKey is the comparison form used for suggestions only.
func foldKey(input string) string {
	s := strings.ToLower(NormalizeCell(input))
	s = reNonWord.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func Tokenize(input string) []string {
	parts := strings.Split(foldKey(input), " ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if len([]rune(p)) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

type Suggestion struct {
	Value string
	Score float64
}

// Closest ranks options against query and returns the best one scoring at
// least minScore.
func Closest(query string, options []string, minScore float64) (Suggestion, bool) {
	ranked := Rank(query, options, 1)
	if len(ranked) == 0 || ranked[0].Score < minScore {
		return Suggestion{}, false
	}
	return ranked[0], true
}

func Rank(query string, options []string, limit int) []Suggestion {
	q := foldKey(query)
	qTokens := Tokenize(query)
	out := make([]Suggestion, 0, len(options))
	for _, option := range options {
		out = append(out, Suggestion{Value: option, Score: scoreText(q, foldKey(option), qTokens, Tokenize(option))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func scoreText(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
