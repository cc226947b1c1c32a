package transcript

import (
	"fmt"
	"strings"

	"finpod/internal/services"
)

// Role is the inferred function of a speaker on the call.
type Role string

const (
	RoleExecutive Role = "executive"
	RoleAnalyst   Role = "analyst"
	RoleOperator  Role = "operator"
	RoleUnknown   Role = "unknown"
)

// Section is the coarse phase of a call.
type Section string

const (
	SectionPreparedRemarks Section = "prepared_remarks"
	SectionQA              Section = "qa"
	SectionUnknown         Section = "unknown"
)

// Turn is one contiguous block of speech by a single speaker.
type Turn struct {
	SpeakerName  string  `json:"speaker_name"`
	SpeakerTitle string  `json:"speaker_title,omitempty"`
	Role         Role    `json:"speaker_role"`
	Section      Section `json:"section"`
	Text         string  `json:"text"`
}

// Participant is a speaker known to the call, from a listing or a titled cue.
type Participant struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Role  Role   `json:"role"`
}

// Transcript is the structured form of a call, in original order.
type Transcript struct {
	Turns        []Turn        `json:"turns"`
	Participants []Participant `json:"participants,omitempty"`
	Preamble     []string      `json:"preamble,omitempty"`
}

// Summary aggregates turn counts for prompts and CLI inspection.
type Summary struct {
	Turns        int
	ByRole       map[Role]int
	BySection    map[Section]int
	Participants []Participant
}

// Summary returns per-role and per-section turn counts.
func (t *Transcript) Summary() Summary {
	s := Summary{
		Turns:        len(t.Turns),
		ByRole:       map[Role]int{},
		BySection:    map[Section]int{},
		Participants: append([]Participant(nil), t.Participants...),
	}
	for _, turn := range t.Turns {
		s.ByRole[turn.Role]++
		s.BySection[turn.Section]++
	}
	return s
}

// Degraded reports whether no speaker cues were detected.
func (t *Transcript) Degraded() bool {
	return len(t.Turns) == 1 && t.Turns[0].Section == SectionUnknown
}

// SectionTurns returns the turns belonging to one section.
func (t *Transcript) SectionTurns(section Section) []Turn {
	var out []Turn
	for _, turn := range t.Turns {
		if turn.Section == section {
			out = append(out, turn)
		}
	}
	return out
}

// EmptyInputError reports raw text that normalized to zero lines. The
// transcript is unusable, not malformed.
type EmptyInputError struct {
	RawLength int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("transcript empty after normalization (%d raw bytes)", e.RawLength)
}

func (e *EmptyInputError) Unwrap() error { return services.ErrNormalizationEmpty }

// StructureAmbiguousError reports a line on which speaker cues overlap in a
// way the segmenter refuses to resolve. It indicates a cue pattern that needs
// fixing, so it is never retried.
type StructureAmbiguousError struct {
	Line   int
	Text   string
	Labels []string
}

func (e *StructureAmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous speaker cues %s on line %d: %q", strings.Join(e.Labels, " / "), e.Line, truncate(e.Text, 80))
}

func (e *StructureAmbiguousError) Unwrap() error { return services.ErrStructureAmbiguous }

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
