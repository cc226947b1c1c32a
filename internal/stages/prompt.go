package stages

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"finpod/internal/roster"
	"finpod/internal/services"
	"finpod/internal/transcript"
)

//go:embed prompt.tmpl
var defaultPromptTemplate string

const defaultTargetWords = 900

// Prompt renders the system and user messages for the script engine.
type Prompt struct {
	tmpl *template.Template
}

// PromptData is the value the prompt template executes against.
type PromptData struct {
	Ticker       string
	CompanyName  string
	Period       string
	TargetWords  int
	Degraded     bool
	Participants []transcript.Participant
	Prepared     []transcript.Turn
	QA           []transcript.Turn
	Other        []transcript.Turn
	Summary      transcript.Summary
}

// DefaultPrompt returns the built-in template.
func DefaultPrompt() *Prompt {
	p, err := ParsePrompt(defaultPromptTemplate)
	if err != nil {
		panic(fmt.Sprintf("default prompt template: %v", err))
	}
	return p
}

// LoadPrompt reads a template file, or the built-in template when path is empty.
func LoadPrompt(path string) (*Prompt, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPrompt(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "prompt", "read", path, err)
	}
	return ParsePrompt(string(data))
}

// ParsePrompt parses template text. It must define "system" and "user".
func ParsePrompt(text string) (*Prompt, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "prompt", "parse", "", err)
	}
	for _, name := range []string{"system", "user"} {
		if tmpl.Lookup(name) == nil {
			return nil, services.Wrap(services.ErrConfiguration, "prompt", "parse", fmt.Sprintf("template %q not defined", name), nil)
		}
	}
	return &Prompt{tmpl: tmpl}, nil
}

// NewPromptData assembles template input from a structured transcript.
func NewPromptData(company roster.Company, period roster.Period, t *transcript.Transcript) PromptData {
	data := PromptData{
		Ticker:       company.Ticker,
		CompanyName:  company.DisplayName(),
		Period:       period.String(),
		TargetWords:  defaultTargetWords,
		Degraded:     t.Degraded(),
		Participants: t.Participants,
		Prepared:     t.SectionTurns(transcript.SectionPreparedRemarks),
		QA:           t.SectionTurns(transcript.SectionQA),
		Other:        t.SectionTurns(transcript.SectionUnknown),
		Summary:      t.Summary(),
	}
	return data
}

// Render executes both templates.
func (p *Prompt) Render(data PromptData) (system, user string, err error) {
	var b strings.Builder
	if err := p.tmpl.ExecuteTemplate(&b, "system", data); err != nil {
		return "", "", services.Wrap(services.ErrPermanent, "prompt", "render", "system", err)
	}
	system = strings.TrimSpace(b.String())
	b.Reset()
	if err := p.tmpl.ExecuteTemplate(&b, "user", data); err != nil {
		return "", "", services.Wrap(services.ErrPermanent, "prompt", "render", "user", err)
	}
	return system, strings.TrimSpace(b.String()), nil
}
