package feeds

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanHTML strips markup from a feed summary and collapses whitespace.
func CleanHTML(raw string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	// <br> separates the labeled summary lines; keep the boundaries as
	// newlines so the line parser can split on them.
	doc.Find("br").ReplaceWithHtml("\n")
	text := doc.Text()

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// NumberFromString extracts the first numeric run from a labeled value like
// "$1,500" or "$15.00-$30.00".
func NumberFromString(raw string) (float64, bool) {
	raw = strings.ReplaceAll(raw, ",", "")
	start := -1
	for i, r := range raw {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	end := start
	seenDot := false
	for end < len(raw) {
		c := raw[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(raw[start:end], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
