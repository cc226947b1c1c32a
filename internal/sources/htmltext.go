package sources

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "section": {}, "article": {}, "header": {}, "footer": {}, "main": {},
	"nav": {}, "aside": {}, "br": {}, "hr": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {},
	"h6": {}, "li": {}, "ul": {}, "ol": {}, "pre": {}, "blockquote": {}, "tr": {}, "td": {},
	"th": {}, "table": {},
}

var skipTags = map[string]struct{}{"script": {}, "style": {}, "noscript": {}, "template": {}}

// chromeLines are navigation and footer labels from the earningscall.biz layout.
var chromeLines = map[string]struct{}{
	"search": {}, "calendar": {}, "chatai": {}, "pricing": {}, "resources": {}, "about us": {},
	"top employers": {}, "login": {}, "download app": {}, "download apps": {}, "designed by": {},
	"company": {}, "quick link": {}, "resource": {}, "download": {}, "share": {}, "disclaimer": {},
	"-": {}, "–": {}, "—": {}, "1.0x": {},
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankRuns       = regexp.MustCompile(`\n{3,}`)
)

// htmlToText renders a document as text with block elements on their own lines.
func htmlToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	writeText(&b, root)
	return b.String(), nil
}

func writeText(b *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		if name == "#text" {
			b.WriteString(node.Text())
			return
		}
		if _, skip := skipTags[name]; skip {
			return
		}
		_, block := blockTags[name]
		if block {
			b.WriteByte('\n')
		}
		writeText(b, node)
		if block {
			b.WriteByte('\n')
		}
	})
}

func isChrome(line string) bool {
	if line == "" {
		return true
	}
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "earningscall ·") {
		return true
	}
	if _, ok := chromeLines[lower]; ok {
		return true
	}
	return strings.HasPrefix(line, "©")
}

// trimTranscriptPage drops site chrome around a transcript: leading
// navigation, everything before the first Operator line when there is one,
// and everything from the Disclaimer footer on.
func trimTranscriptPage(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")

	var lines []string
	started := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !started {
			if isChrome(line) {
				continue
			}
			started = true
		}
		lines = append(lines, line)
	}

	for i, line := range lines {
		if strings.EqualFold(line, "operator") {
			lines = lines[i:]
			break
		}
	}
	for i, line := range lines {
		if strings.EqualFold(line, "disclaimer") {
			lines = lines[:i]
			break
		}
	}

	out := make([]string, 0, len(lines))
	lastBlank := false
	for _, line := range lines {
		blank := line == ""
		if blank && lastBlank {
			continue
		}
		out = append(out, line)
		lastBlank = blank
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
