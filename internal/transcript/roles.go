package transcript

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// roleLabels are speaker labels that name a role rather than a person.
var roleLabels = map[string]Role{
	"operator":                 RoleOperator,
	"moderator":                RoleOperator,
	"conference operator":      RoleOperator,
	"coordinator":              RoleOperator,
	"analyst":                  RoleAnalyst,
	"unidentified analyst":     RoleAnalyst,
	"unknown analyst":          RoleAnalyst,
	"ceo":                      RoleExecutive,
	"cfo":                      RoleExecutive,
	"coo":                      RoleExecutive,
	"cto":                      RoleExecutive,
	"cio":                      RoleExecutive,
	"president":                RoleExecutive,
	"chairman":                 RoleExecutive,
	"chair":                    RoleExecutive,
	"executive":                RoleExecutive,
	"management":               RoleExecutive,
	"investor relations":       RoleExecutive,
	"ir":                       RoleExecutive,
	"chief executive officer":  RoleExecutive,
	"chief financial officer":  RoleExecutive,
	"chief operating officer":  RoleExecutive,
	"unidentified participant": RoleUnknown,
	"unidentified speaker":     RoleUnknown,

	"unidentified company representative": RoleExecutive,
}

var (
	executiveTitle = regexp.MustCompile(`(?i)\b(ceo|cfo|coo|cto|cio|cao|president|chair(man|woman|person)?|chief|founder|treasurer|controller|general counsel|investor relations|ir|head of|director of|vice president|svp|evp|vp|officer|executive|co-founder)\b`)
	analystTitle   = regexp.MustCompile(`(?i)\b(analyst|research)\b`)
	operatorTitle  = regexp.MustCompile(`(?i)\b(operator|moderator|coordinator)\b`)
	labelSplit     = regexp.MustCompile(`\s+(?:--|-|–|—)\s+|\s*,\s+|\s*\(`)
)

// executiveGroups and analystGroups head participant listings in a preamble.
var (
	executiveGroups = []string{"corporate participants", "company participants", "executives", "company representatives", "management", "corporate speakers"}
	analystGroups   = []string{"conference call participants", "analysts", "call participants", "other participants"}
)

var titleCaser = cases.Title(language.English)

// classifyTitle maps a free-form title to a role. Operator wins over analyst,
// which wins over executive, so "Research Analyst, Vice President" is an analyst.
func classifyTitle(title string) Role {
	title = strings.TrimSpace(title)
	if title == "" {
		return RoleUnknown
	}
	if role, ok := roleLabels[strings.ToLower(title)]; ok {
		return role
	}
	switch {
	case operatorTitle.MatchString(title):
		return RoleOperator
	case analystTitle.MatchString(title):
		return RoleAnalyst
	case executiveTitle.MatchString(title):
		return RoleExecutive
	}
	return RoleUnknown
}

// roleLabel reports whether name is itself a role ("CFO", "Operator").
func roleLabel(name string) (Role, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if role, ok := roleLabels[key]; ok {
		return role, true
	}
	if strings.HasPrefix(key, "chief ") || strings.HasPrefix(key, "vice president") || strings.HasPrefix(key, "head of ") {
		return RoleExecutive, true
	}
	return RoleUnknown, false
}

// splitLabel separates "Jane Doe -- Chief Financial Officer" into name and title.
func splitLabel(label string) (name, title string) {
	label = strings.TrimSpace(label)
	loc := labelSplit.FindStringIndex(label)
	if loc == nil {
		return label, ""
	}
	name = strings.TrimSpace(label[:loc[0]])
	title = strings.TrimSpace(label[loc[1]:])
	title = strings.Trim(title, "() ")
	return name, title
}

// displayName collapses whitespace and title-cases names written in capitals.
// Short all-caps labels such as CFO keep their form.
func displayName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return name
	}
	if _, ok := roleLabel(name); ok && len([]rune(name)) <= 4 {
		return name
	}
	if isAllCaps(name) {
		return titleCaser.String(strings.ToLower(name))
	}
	return name
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters > 0
}

// speakerRoster accumulates who is on the call and in what role.
type speakerRoster struct {
	byKey map[string]*Participant
	order []string
}

func newSpeakerRoster() *speakerRoster {
	return &speakerRoster{byKey: map[string]*Participant{}}
}

// learn records a speaker. A known role is never downgraded to unknown.
func (r *speakerRoster) learn(name, title string, role Role) {
	key := nameKey(name)
	if key == "" {
		return
	}
	if existing, ok := r.byKey[key]; ok {
		if existing.Title == "" && title != "" {
			existing.Title = title
		}
		if existing.Role == RoleUnknown && role != RoleUnknown {
			existing.Role = role
		}
		return
	}
	r.byKey[key] = &Participant{Name: displayName(name), Title: title, Role: role}
	r.order = append(r.order, key)
}

func (r *speakerRoster) lookup(name string) (Participant, bool) {
	p, ok := r.byKey[nameKey(name)]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

func (r *speakerRoster) participants() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.byKey[key])
	}
	return out
}

// listingGroup reports whether line heads a participant listing and which role it implies.
func listingGroup(line string) (Role, bool) {
	key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(line), ":"))
	for _, g := range executiveGroups {
		if key == g {
			return RoleExecutive, true
		}
	}
	for _, g := range analystGroups {
		if key == g {
			return RoleAnalyst, true
		}
	}
	return RoleUnknown, false
}
