package transcript

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	pageMarkerPattern = regexp.MustCompile(`(?i)^(?:\[?page\s+\d+(?:\s+of\s+\d+)?\]?|-\s*\d{1,4}\s*-|\d{1,3}|\d{1,4}\s*/\s*\d{1,4})$`)
	timestampOnly     = regexp.MustCompile(`(?i)^[\[(]?\d{1,2}:\d{2}(?::\d{2})?(?:\s*[ap]\.?m\.?)?(?:\s+[a-z]{2,4})?[\])]?$`)
	leadingTimestamp  = regexp.MustCompile(`^[\[(]\d{1,2}:\d{2}(?::\d{2})?[\])]\s*|^\d{1,2}:\d{2}:\d{2}\s+`)
	copyrightPattern  = regexp.MustCompile(`(?i)^(?:copyright\b|©|\(c\)\s*\d{4})|all rights reserved`)
	disclaimerHeading = regexp.MustCompile(`(?i)^disclaimer:?$`)
	legalPhrases      = []string{
		"forward-looking statements",
		"forward looking statements",
		"safe harbor",
		"private securities litigation reform act",
		"undue reliance",
	}
	legalQualifiers = []string{
		"risks and uncertainties",
		"actual results",
		"undue reliance",
		"securities and exchange commission",
		"sec filings",
		"no obligation to update",
		"undertake no obligation",
		"safe harbor",
	}
	runningHeaderPattern = regexp.MustCompile(`(?i)\b(?:transcript|earnings call|conference call|confidential|page|edited|fiscal|quarter)\b`)
)

// headerOnlyWords never occur in a speaker name line.
var headerOnlyWords = map[string]struct{}{
	"transcript": {}, "confidential": {}, "edited": {}, "earnings": {}, "conference": {}, "call": {},
}

// Normalize cleans raw transcript text into an ordered sequence of non-empty
// lines. It decodes HTML entities, collapses whitespace, and drops page
// furniture, repeated running headers, legal boilerplate, and timestamps.
// Everything after a standalone "Disclaimer" heading is dropped. The result
// is deterministic and order-preserving, and normalizing the joined output
// again yields the same lines.
func Normalize(raw string) ([]string, error) {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	cleaned := make([]string, 0, strings.Count(text, "\n")+1)
	for _, line := range strings.Split(text, "\n") {
		line = cleanLine(line)
		if line == "" {
			continue
		}
		if disclaimerHeading.MatchString(line) {
			break
		}
		cleaned = append(cleaned, line)
	}

	counts := make(map[string]int, len(cleaned))
	for _, line := range cleaned {
		counts[line]++
	}

	out := make([]string, 0, len(cleaned))
	for _, line := range cleaned {
		if dropLine(line, counts[line]) {
			continue
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return nil, &EmptyInputError{RawLength: len(raw)}
	}
	return out, nil
}

// cleanLine applies the per-line transforms until nothing changes.
func cleanLine(line string) string {
	for {
		next := unescapeAll(line)
		next = strings.Map(func(r rune) rune {
			switch {
			case r == '\u00a0' || r == '\u2007' || r == '\u202f':
				return ' '
			case r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff':
				return -1
			case unicode.IsControl(r) && r != '\t':
				return -1
			}
			return r
		}, next)
		next = strings.Join(strings.Fields(next), " ")
		next = leadingTimestamp.ReplaceAllString(next, "")
		next = strings.TrimSpace(next)
		if next == line {
			return next
		}
		line = next
	}
}

func unescapeAll(s string) string {
	for strings.Contains(s, "&") {
		next := html.UnescapeString(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func dropLine(line string, occurrences int) bool {
	switch {
	case pageMarkerPattern.MatchString(line):
		return true
	case timestampOnly.MatchString(line):
		return true
	case copyrightPattern.MatchString(line):
		return true
	case isLegalBoilerplate(line):
		return true
	case occurrences >= 3 && isRunningHeader(line):
		return true
	}
	return false
}

// isLegalBoilerplate matches safe-harbor paragraphs. Short lines and lines
// that open with a speaker label are kept so a turn is never lost.
func isLegalBoilerplate(line string) bool {
	if len(strings.Fields(line)) < 20 {
		return false
	}
	if idx := strings.Index(line, ":"); idx > 0 && idx < 40 {
		return false
	}
	lower := strings.ToLower(line)
	phrase := false
	for _, p := range legalPhrases {
		if strings.Contains(lower, p) {
			phrase = true
			break
		}
	}
	if !phrase {
		return false
	}
	for _, q := range legalQualifiers {
		if strings.Contains(lower, q) {
			return true
		}
	}
	return false
}

func isRunningHeader(line string) bool {
	if strings.Contains(line, ":") || len(strings.Fields(line)) > 12 {
		return false
	}
	// A speaker who talks three times repeats their name line.
	if nameLineCue(line) {
		return false
	}
	if strings.IndexFunc(line, unicode.IsDigit) >= 0 {
		return true
	}
	return runningHeaderPattern.MatchString(line)
}

// nameLineCue reports whether line could be an isolated speaker name: two to
// four capitalised words without digits or terminal punctuation.
func nameLineCue(line string) bool {
	words := strings.Fields(line)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	if strings.ContainsAny(line[len(line)-1:], ".?!;,") {
		return false
	}
	for _, w := range words {
		if _, ok := headerOnlyWords[strings.ToLower(w)]; ok {
			return false
		}
		if _, ok := nameParticles[w]; ok {
			continue
		}
		for i, r := range w {
			switch {
			case i == 0 && !unicode.IsUpper(r):
				return false
			case unicode.IsLetter(r), r == '.', r == '\'', r == '’', r == '-':
			default:
				return false
			}
		}
	}
	return true
}

// Join renders normalized lines back into text.
func Join(lines []string) string {
	return strings.Join(lines, "\n")
}
