package llm

import (
	"regexp"
	"strconv"
	"strings"
)

// WordleScores holds the number of guesses per player. Nil means not said.
type WordleScores struct {
	Self     *int
	Opponent *int
}

var (
	wordleTie    = regexp.MustCompile(`(?i)\b(?:tied|tie|both (?:got|scored|had))\b\D*?([1-7])\b`)
	wordleBeatMe = regexp.MustCompile(`(?i)\b(\p{L}+) beat me\b\D*?([1-7])\s*(?:-|–|to)\s*([1-7])\b`)
	wordleIBeat  = regexp.MustCompile(`(?i)\bI beat (\p{L}+)\b\D*?([1-7])\s*(?:-|–|to)\s*([1-7])\b`)
	wordleIGot   = regexp.MustCompile(`(?i)\bI got (?:it in )?([1-7])\b`)
)

// ParseWordle reads common score phrasings without a model call. The winner
// of a "beat" phrase gets the lower score regardless of the order spoken.
func ParseWordle(text, selfName, opponent string) (WordleScores, bool) {
	if m := wordleBeatMe.FindStringSubmatch(text); m != nil && strings.EqualFold(m[1], opponent) {
		lo, hi := ordered(m[2], m[3])
		return WordleScores{Self: &hi, Opponent: &lo}, true
	}
	if m := wordleIBeat.FindStringSubmatch(text); m != nil && strings.EqualFold(m[1], opponent) {
		lo, hi := ordered(m[2], m[3])
		return WordleScores{Self: &lo, Opponent: &hi}, true
	}
	if m := wordleTie.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		both := n
		return WordleScores{Self: &n, Opponent: &both}, true
	}

	var scores WordleScores
	if m := wordleIGot.FindStringSubmatch(text); m != nil {
		scores.Self = atoiPtr(m[1])
	} else if m := playerGot(selfName).FindStringSubmatch(text); m != nil {
		scores.Self = atoiPtr(m[1])
	}
	if m := playerGot(opponent).FindStringSubmatch(text); m != nil {
		scores.Opponent = atoiPtr(m[1])
	}
	if scores.Self == nil && scores.Opponent == nil {
		return WordleScores{}, false
	}
	return scores, true
}

func playerGot(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\s+got (?:it in )?([1-7])\b`)
}

func atoiPtr(s string) *int {
	n, _ := strconv.Atoi(s)
	return &n
}

func ordered(a, b string) (int, int) {
	x, _ := strconv.Atoi(a)
	y, _ := strconv.Atoi(b)
	return min(x, y), max(x, y)
}

func validScore(n *int) *int {
	if n == nil || *n < 1 || *n > 7 {
		return nil
	}
	return n
}
