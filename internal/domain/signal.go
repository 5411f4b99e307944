package domain

import "regexp"

// signalRe is case-sensitive: "I am [going] long|short [on] PAIR".
var signalRe = regexp.MustCompile(`^I am\s+(?:going\s+)?(long|short)(?:\s+on)?\s+([A-Z]+)`)

// ParseSignal extracts a position and an uppercase pair token from a post.
func ParseSignal(text string) (Position, string, bool) {
	m := signalRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	pos, err := ParsePosition(m[1])
	if err != nil {
		return 0, "", false
	}
	return pos, m[2], true
}
