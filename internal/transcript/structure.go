package transcript

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLabelRunes bounds the length of a speaker label.
const DefaultMaxLabelRunes = 40

const maxLabelWords = 6

var (
	qaHeading       = regexp.MustCompile(`(?i)^(?:questions?[- ]and[- ]answers?(?: session)?|q\s*&\s*a(?: session)?|questions? & answers?)$`)
	preparedHeading = regexp.MustCompile(`(?i)^(?:prepared remarks|presentation|management discussion(?: section)?|opening remarks)$`)
	qaTransition    = regexp.MustCompile(`(?i)question[- ]and[- ]answer session|q\s*&\s*a session|\b(?:begin|start|open|move to|turn to|proceed to|now take)\b[^.?!]{0,40}\b(?:q\s*&\s*a|questions?|question[- ]and[- ]answer)\b`)
	timeLike        = regexp.MustCompile(`^\d{1,2}$`)
	sentenceEnd     = regexp.MustCompile(`[.?!"”')\]]$`)
)

// nonSpeakerLabels look like speaker labels but introduce metadata.
var nonSpeakerLabels = map[string]struct{}{
	"note": {}, "source": {}, "date": {}, "time": {}, "ticker": {}, "company": {}, "event": {},
	"call date": {}, "copyright": {}, "title": {}, "subject": {}, "re": {}, "webcast": {},
	"location": {}, "fiscal year": {}, "quarter": {}, "period": {}, "symbol": {}, "exchange": {},
}

// headingWords mark short title-case lines that are section headings, not names.
var headingWords = map[string]struct{}{
	"highlights": {}, "results": {}, "overview": {}, "outlook": {}, "guidance": {}, "summary": {},
	"revenue": {}, "financial": {}, "quarter": {}, "segment": {}, "business": {}, "update": {},
	"review": {}, "remarks": {}, "session": {}, "participants": {}, "instructions": {},
	"statements": {}, "agenda": {}, "introduction": {}, "conclusion": {}, "closing": {},
	"operating": {}, "performance": {}, "call": {}, "earnings": {}, "transcript": {},
}

// nameParticles may appear lower-case inside a personal name.
var nameParticles = map[string]struct{}{
	"de": {}, "van": {}, "von": {}, "la": {}, "del": {}, "da": {}, "di": {}, "bin": {}, "al": {}, "der": {}, "du": {}, "le": {},
}

// Options tune the segmenter.
type Options struct {
	// MaxLabelRunes is the longest name part a speaker cue may have.
	MaxLabelRunes int
}

// Structurer converts normalized lines into a Transcript.
type Structurer struct {
	maxLabel int
}

// NewStructurer builds a segmenter with the given options.
func NewStructurer(opts Options) *Structurer {
	limit := opts.MaxLabelRunes
	if limit <= 0 {
		limit = DefaultMaxLabelRunes
	}
	return &Structurer{maxLabel: limit}
}

// Structure segments lines with default options.
func Structure(lines []string) (*Transcript, error) {
	return NewStructurer(Options{}).Structure(lines)
}

// cue is a detected speaker change.
type cue struct {
	name  string
	title string
	body  string
}

// segmenter is the state machine. section only ever moves from "" to
// prepared_remarks to qa.
type segmenter struct {
	s        *Structurer
	roster   *speakerRoster
	section  Section
	spoken   bool
	pendingQ bool
	group    Role
	turns    []Turn
	current  *Turn
	priorNon bool
	body     []string
	preamble []string
}

// Structure segments normalized lines into speaker turns and sections. A
// transcript without detectable cues yields one turn with unknown role and
// section. Overlapping cues on one line yield *StructureAmbiguousError.
func (s *Structurer) Structure(lines []string) (*Transcript, error) {
	seg := &segmenter{s: s, roster: newSpeakerRoster(), group: RoleUnknown}
	for i := range lines {
		if err := seg.step(lines, i); err != nil {
			return nil, err
		}
	}
	seg.flush()

	if len(seg.turns) == 0 {
		text := strings.Join(lines, "\n")
		return &Transcript{
			Turns:        []Turn{{Role: RoleUnknown, Section: SectionUnknown, Text: text}},
			Participants: seg.roster.participants(),
		}, nil
	}
	return &Transcript{
		Turns:        seg.turns,
		Participants: seg.roster.participants(),
		Preamble:     seg.preamble,
	}, nil
}

func (g *segmenter) step(lines []string, i int) error {
	line := lines[i]

	if g.section != "" {
		switch {
		case qaHeading.MatchString(line):
			g.pendingQ = true
			return nil
		case preparedHeading.MatchString(line):
			return nil
		}
	}

	c, ok, err := g.s.detectCue(lines, i, g.roster)
	if err != nil {
		return err
	}
	if ok {
		g.startTurn(c)
		return nil
	}

	if g.current == nil {
		g.preamble = append(g.preamble, line)
		g.learnListing(line)
		return nil
	}
	g.appendBody(line)
	return nil
}

func (g *segmenter) startTurn(c cue) {
	g.flush()

	name := displayName(c.name)
	role, title := g.resolveRole(c)

	switch {
	case g.section == "":
		g.section = SectionPreparedRemarks
	case g.pendingQ, role == RoleOperator && g.spoken:
		g.section = SectionQA
	}
	g.pendingQ = false

	// Firm affiliations in Q&A belong to analysts.
	if role == RoleUnknown && title != "" && g.section == SectionQA {
		role = RoleAnalyst
	}
	if _, isLabel := roleLabel(c.name); !isLabel {
		g.roster.learn(c.name, title, role)
	}

	g.priorNon = g.spoken
	if role != RoleOperator {
		g.spoken = true
	}
	g.current = &Turn{SpeakerName: name, SpeakerTitle: title, Role: role, Section: g.section}
	if c.body != "" {
		g.appendBody(c.body)
	}
}

// resolveRole checks, in order: the label itself, the title in the cue, and
// the roster built so far.
func (g *segmenter) resolveRole(c cue) (Role, string) {
	if role, ok := roleLabel(c.name); ok {
		title := c.title
		if title == "" {
			title = c.name
		}
		return role, title
	}
	if role := classifyTitle(c.title); role != RoleUnknown {
		return role, c.title
	}
	if p, ok := g.roster.lookup(c.name); ok {
		title := c.title
		if title == "" {
			title = p.Title
		}
		return p.Role, title
	}
	return RoleUnknown, c.title
}

func (g *segmenter) appendBody(line string) {
	g.body = append(g.body, line)
	if g.current.Role != RoleOperator && g.priorNon && g.current.Section != SectionQA && qaTransition.MatchString(line) {
		g.pendingQ = true
	}
}

func (g *segmenter) flush() {
	if g.current == nil {
		return
	}
	g.current.Text = strings.Join(g.body, "\n")
	g.turns = append(g.turns, *g.current)
	g.current = nil
	g.body = nil
}

// learnListing reads participant listings ("Jane Doe - Chief Financial
// Officer") that precede the first turn.
func (g *segmenter) learnListing(line string) {
	if role, ok := listingGroup(line); ok {
		g.group = role
		return
	}
	name, title := splitLabel(line)
	if title == "" || !looksLikeName(name, g.s.maxLabel) {
		return
	}
	role := classifyTitle(title)
	if role == RoleUnknown {
		role = g.group
	}
	g.roster.learn(name, title, role)
}

// detectCue recognises the two speaker cue forms: "Label: text" and an
// isolated name line immediately followed by body text.
func (s *Structurer) detectCue(lines []string, i int, roster *speakerRoster) (cue, bool, error) {
	line := lines[i]

	if label, body, ok := s.colonLabel(line, roster); ok {
		name, title := splitLabel(label)
		if err := s.checkOverlap(i, line, name, title, body, roster); err != nil {
			return cue{}, false, err
		}
		return cue{name: name, title: title, body: body}, true, nil
	}

	if s.isNameLine(line, roster) && i+1 < len(lines) && s.isBodyLine(lines[i+1], roster) {
		name, title := splitLabel(line)
		return cue{name: name, title: title}, true, nil
	}
	return cue{}, false, nil
}

// colonLabel matches "Label: text" where Label is short and name-like. A
// single bare word counts only when it is a role or a known participant, so
// "Margins: up 3%" stays body text.
func (s *Structurer) colonLabel(line string, roster *speakerRoster) (label, body string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", "", false
	}
	label = strings.TrimSpace(line[:idx])
	body = strings.TrimSpace(line[idx+1:])
	if strings.HasPrefix(body, "//") {
		return "", "", false
	}
	if timeLike.MatchString(label) {
		return "", "", false
	}
	if _, skip := nonSpeakerLabels[strings.ToLower(label)]; skip {
		return "", "", false
	}
	name, title := splitLabel(label)
	if utf8.RuneCountInString(label) > 2*s.maxLabel || !looksLikeName(name, s.maxLabel) {
		return "", "", false
	}
	_, isRole := roleLabel(name)
	if !isRole && title == "" && hasHeadingWord(name) {
		return "", "", false
	}
	if !isRole && title == "" && len(strings.Fields(name)) == 1 {
		if _, known := roster.lookup(name); !known {
			return "", "", false
		}
	}
	return label, body, true
}

// checkOverlap rejects lines carrying two competing cues, such as
// "Operator: Analyst: ..." or a label whose name and title are different roles.
func (s *Structurer) checkOverlap(i int, line, name, title, body string, roster *speakerRoster) error {
	outer, outerIsRole := roleLabel(name)
	_, outerKnown := roster.lookup(name)

	if innerLabel, _, ok := s.colonLabel(body, roster); ok {
		innerName, _ := splitLabel(innerLabel)
		_, innerIsRole := roleLabel(innerName)
		_, innerKnown := roster.lookup(innerName)
		if (outerIsRole && innerIsRole) || (outerKnown && innerKnown) {
			return &StructureAmbiguousError{Line: i + 1, Text: line, Labels: []string{name, innerName}}
		}
	}
	if outerIsRole && title != "" {
		if inner, innerIsRole := roleLabel(title); innerIsRole && inner != outer && outer != RoleUnknown && inner != RoleUnknown {
			return &StructureAmbiguousError{Line: i + 1, Text: line, Labels: []string{name, title}}
		}
	}
	return nil
}

// isNameLine matches an isolated speaker line: short, capitalised, without
// terminal punctuation, and either a role, a known participant, titled, or a
// plausible personal name.
func (s *Structurer) isNameLine(line string, roster *speakerRoster) bool {
	if strings.ContainsRune(line, ':') || utf8.RuneCountInString(line) > 2*s.maxLabel {
		return false
	}
	if qaHeading.MatchString(line) || preparedHeading.MatchString(line) {
		return false
	}
	if _, ok := listingGroup(line); ok {
		return false
	}
	name, title := splitLabel(line)
	if !looksLikeName(name, s.maxLabel) {
		return false
	}
	if title == "" && strings.ContainsAny(line[len(line)-1:], ".?!;,") {
		return false
	}
	if _, ok := roleLabel(name); ok {
		return true
	}
	if _, ok := roster.lookup(name); ok {
		return true
	}
	if title != "" {
		return true
	}
	words := strings.Fields(name)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	return !hasHeadingWord(name)
}

func hasHeadingWord(name string) bool {
	for _, w := range strings.Fields(name) {
		if _, heading := headingWords[strings.ToLower(w)]; heading {
			return true
		}
	}
	return false
}

// isBodyLine reports whether line reads as speech rather than another label.
func (s *Structurer) isBodyLine(line string, roster *speakerRoster) bool {
	if _, _, ok := s.colonLabel(line, roster); ok {
		return false
	}
	if s.isNameLine(line, roster) {
		return false
	}
	if qaHeading.MatchString(line) || preparedHeading.MatchString(line) {
		return false
	}
	return len(strings.Fields(line)) > maxLabelWords || sentenceEnd.MatchString(line) || utf8.RuneCountInString(line) > 2*s.maxLabel
}

// looksLikeName accepts 1-6 capitalised words (or all capitals) of bounded length.
func looksLikeName(name string, maxRunes int) bool {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRunes {
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsUpper(first) {
		return false
	}
	words := strings.Fields(name)
	if len(words) == 0 || len(words) > maxLabelWords {
		return false
	}
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '.' || r == '\'' || r == '’' || r == '-' || r == '&':
		default:
			return false
		}
	}
	if letters < 2 {
		return false
	}
	if isAllCaps(name) {
		return true
	}
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			continue
		}
		if _, ok := nameParticles[w]; ok {
			continue
		}
		return false
	}
	return true
}
