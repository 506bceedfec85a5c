package relay

import (
	"fmt"
	"math"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
)

// Headers carrying a bare numeric spam score, in order of preference
var spamScoreHeaders = []string{"X-Spam-Score", "X-Spamd-Score"}

// score=N inside a SpamAssassin X-Spam-Status header
var spamStatusScore = regexp.MustCompile(`(?i)\bscore=(-?\d+(?:\.\d+)?)`)

// ExtractSpamScore returns the raw spam score found under a recognised marker,
// or false when none is present.
func ExtractSpamScore(headers textproto.MIMEHeader) (string, bool) {
	if headers == nil {
		return "", false
	}
	for _, name := range spamScoreHeaders {
		if v := strings.TrimSpace(headers.Get(name)); v != "" {
			return v, true
		}
	}
	if status := headers.Get("X-Spam-Status"); status != "" {
		if m := spamStatusScore.FindStringSubmatch(status); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ExceedsThreshold reports whether score is at or above threshold. An empty
// score never exceeds. A score that is not a finite number returns an error
// and does not exceed either.
func ExceedsThreshold(score string, threshold float64) (bool, error) {
	score = strings.TrimSpace(score)
	if score == "" {
		return false, nil
	}
	v, err := strconv.ParseFloat(score, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return false, fmt.Errorf("unparseable spam score %q", score)
	}
	return v >= threshold, nil
}
