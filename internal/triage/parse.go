package triage

import (
	"regexp"
	"strconv"
	"strings"
)

const severityPhrase = "Hence its severity score is"

var (
	severityRe = regexp.MustCompile(`Hence its severity score is (\d+\.\d+|\d+)`)
	commentRe  = regexp.MustCompile(`(?s)(.*?)\s*Hence its severity score is`)
)

// ParseResponse extracts the severity rating and comment from classifier text.
// The two extractions are independent. A missing rating is nil, a missing
// comment is DefaultComment.
func ParseResponse(text string) (*float64, string) {
	var rating *float64
	comment := DefaultComment
	if text == "" {
		return rating, comment
	}

	if m := severityRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rating = &v
		}
	}
	if m := commentRe.FindStringSubmatch(text); m != nil {
		comment = strings.TrimSpace(m[1])
	}
	return rating, comment
}

// InRange reports whether a rating falls within the clinical scale [1, 10].
func InRange(rating float64) bool {
	return rating >= 1 && rating <= 10
}
