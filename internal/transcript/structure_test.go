package transcript_test

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"finpod/internal/services"
	"finpod/internal/transcript"
)

func roles(tr *transcript.Transcript) []transcript.Role {
	out := make([]transcript.Role, 0, len(tr.Turns))
	for _, turn := range tr.Turns {
		out = append(out, turn.Role)
	}
	return out
}

func sections(tr *transcript.Transcript) []transcript.Section {
	out := make([]transcript.Section, 0, len(tr.Turns))
	for _, turn := range tr.Turns {
		out = append(out, turn.Section)
	}
	return out
}

func assertMonotonic(t *testing.T, tr *transcript.Transcript) {
	t.Helper()
	seenQA := false
	for i, turn := range tr.Turns {
		if turn.Section == transcript.SectionQA {
			seenQA = true
		}
		if seenQA && turn.Section == transcript.SectionPreparedRemarks {
			t.Fatalf("turn %d reverted to prepared remarks after Q&A: %+v", i, tr.Turns)
		}
	}
}

func TestStructureColonCues(t *testing.T) {
	lines, err := transcript.Normalize("CFO: Revenue grew 10%.\nOperator: Let's begin Q&A.\nAnalyst: What drove growth?")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	tr, err := transcript.Structure(lines)
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if len(tr.Turns) != 3 {
		t.Fatalf("expected 3 turns, got %d: %+v", len(tr.Turns), tr.Turns)
	}
	wantRoles := []transcript.Role{transcript.RoleExecutive, transcript.RoleOperator, transcript.RoleAnalyst}
	if got := roles(tr); !reflect.DeepEqual(got, wantRoles) {
		t.Fatalf("roles = %v, want %v", got, wantRoles)
	}
	wantSections := []transcript.Section{transcript.SectionPreparedRemarks, transcript.SectionQA, transcript.SectionQA}
	if got := sections(tr); !reflect.DeepEqual(got, wantSections) {
		t.Fatalf("sections = %v, want %v", got, wantSections)
	}
	if tr.Turns[0].Text != "Revenue grew 10%." || tr.Turns[2].Text != "What drove growth?" {
		t.Fatalf("unexpected turn text: %+v", tr.Turns)
	}
}

const fullCall = `Acme Corp Q1 2024 Earnings Call
Corporate Participants
Jane Doe - Chief Financial Officer
John Roe - Chief Executive Officer
Conference Call Participants
Sam Lee - Goldman Sachs
Operator
Good day and welcome to the Acme first quarter call. After the speakers' remarks there will be a question-and-answer session.
John Roe
Thank you, operator. We had a strong quarter with record revenue.
Jane Doe
Revenue grew 10% year over year. With that, we will open the line for questions.
Operator
Our first question comes from Sam Lee with Goldman Sachs.
Sam Lee
What drove the margin expansion this quarter?
Jane Doe
Mostly pricing and mix.`

func TestStructureIsolatedNameCuesWithParticipantListing(t *testing.T) {
	tr, err := transcript.Structure(strings.Split(fullCall, "\n"))
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	wantRoles := []transcript.Role{
		transcript.RoleOperator, transcript.RoleExecutive, transcript.RoleExecutive,
		transcript.RoleOperator, transcript.RoleAnalyst, transcript.RoleExecutive,
	}
	if got := roles(tr); !reflect.DeepEqual(got, wantRoles) {
		t.Fatalf("roles = %v, want %v", got, wantRoles)
	}
	wantSections := []transcript.Section{
		transcript.SectionPreparedRemarks, transcript.SectionPreparedRemarks, transcript.SectionPreparedRemarks,
		transcript.SectionQA, transcript.SectionQA, transcript.SectionQA,
	}
	if got := sections(tr); !reflect.DeepEqual(got, wantSections) {
		t.Fatalf("sections = %v, want %v", got, wantSections)
	}
	if tr.Turns[2].SpeakerTitle != "Chief Financial Officer" {
		t.Fatalf("expected title from listing, got %q", tr.Turns[2].SpeakerTitle)
	}
	if len(tr.Participants) != 3 {
		t.Fatalf("expected 3 participants, got %+v", tr.Participants)
	}
	if len(tr.Preamble) != 6 {
		t.Fatalf("expected 6 preamble lines, got %q", tr.Preamble)
	}
	summary := tr.Summary()
	if summary.ByRole[transcript.RoleExecutive] != 3 || summary.BySection[transcript.SectionQA] != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	assertMonotonic(t, tr)
}

func TestStructureSectionNeverReverts(t *testing.T) {
	lines := []string{
		"CEO: Welcome everyone.",
		"Question-and-Answer Session",
		"Operator: First question please.",
		"Analyst: How is demand?",
		"Prepared Remarks",
		"CEO: Demand is strong.",
		"Operator: Next question.",
	}
	tr, err := transcript.Structure(lines)
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if len(tr.Turns) != 5 {
		t.Fatalf("expected headings to be consumed, got %+v", tr.Turns)
	}
	if tr.Turns[0].Section != transcript.SectionPreparedRemarks {
		t.Fatalf("expected first turn prepared, got %s", tr.Turns[0].Section)
	}
	for _, turn := range tr.Turns[1:] {
		if turn.Section != transcript.SectionQA {
			t.Fatalf("expected qa after heading, got %+v", tr.Turns)
		}
	}
	assertMonotonic(t, tr)
}

func TestStructureWithoutCuesIsDegraded(t *testing.T) {
	lines := []string{"the company reported revenue growth.", "margins improved in every segment."}
	tr, err := transcript.Structure(lines)
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if !tr.Degraded() {
		t.Fatalf("expected degraded transcript, got %+v", tr.Turns)
	}
	turn := tr.Turns[0]
	if turn.Role != transcript.RoleUnknown || turn.Section != transcript.SectionUnknown {
		t.Fatalf("unexpected role/section: %+v", turn)
	}
	if turn.Text != strings.Join(lines, "\n") {
		t.Fatalf("expected whole text in single turn, got %q", turn.Text)
	}
}

func TestStructureAmbiguousCues(t *testing.T) {
	lines := []string{"CFO: Revenue grew.", "Operator: Analyst: What drove growth?"}
	_, err := transcript.Structure(lines)
	if err == nil {
		t.Fatal("expected ambiguity error")
	}
	if !errors.Is(err, services.ErrStructureAmbiguous) {
		t.Fatalf("expected ambiguity marker, got %v", err)
	}
	var ambiguous *transcript.StructureAmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected *StructureAmbiguousError, got %T", err)
	}
	if ambiguous.Line != 2 {
		t.Fatalf("expected line 2, got %d", ambiguous.Line)
	}
}

func TestStructureTitleCasesCapitalisedNames(t *testing.T) {
	tr, err := transcript.Structure([]string{"JOHN SMITH: Good morning everyone.", "Revenue Growth: 10% this quarter."})
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if len(tr.Turns) != 1 {
		t.Fatalf("expected heading-like label to stay in body, got %+v", tr.Turns)
	}
	if tr.Turns[0].SpeakerName != "John Smith" {
		t.Fatalf("expected title-cased name, got %q", tr.Turns[0].SpeakerName)
	}
	if !strings.Contains(tr.Turns[0].Text, "Revenue Growth: 10%") {
		t.Fatalf("expected body to keep heading line, got %q", tr.Turns[0].Text)
	}
}

func TestStructureRespectsLabelThreshold(t *testing.T) {
	s := transcript.NewStructurer(transcript.Options{MaxLabelRunes: 5})
	tr, err := s.Structure([]string{"Jonathan Smith: hello there."})
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if !tr.Degraded() {
		t.Fatalf("expected long label to be ignored, got %+v", tr.Turns)
	}
}

func TestStructureFirmAffiliationInQAIsAnalyst(t *testing.T) {
	lines := []string{
		"CEO: Results were solid.",
		"Operator: We will now take questions.",
		"Pat Kim -- Morgan Stanley",
		"Can you talk about pricing trends in the quarter?",
	}
	tr, err := transcript.Structure(lines)
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	last := tr.Turns[len(tr.Turns)-1]
	if last.SpeakerName != "Pat Kim" || last.Role != transcript.RoleAnalyst || last.Section != transcript.SectionQA {
		t.Fatalf("unexpected analyst turn: %+v", last)
	}
	if last.SpeakerTitle != "Morgan Stanley" {
		t.Fatalf("expected firm as title, got %q", last.SpeakerTitle)
	}
}

func TestStructureSingleWordLabelNeedsRoleOrParticipant(t *testing.T) {
	lines := []string{
		"Jane Doe - Chief Financial Officer",
		"CFO: Revenue grew 10% in the quarter.",
		"Margins: up 3% this quarter.",
		"Jane: Cash flow was a record.",
	}
	tr, err := transcript.Structure(lines)
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if len(tr.Turns) != 1 {
		t.Fatalf("expected one turn, got %+v", tr.Turns)
	}
	want := "Revenue grew 10% in the quarter.\nMargins: up 3% this quarter.\nJane: Cash flow was a record."
	if tr.Turns[0].Text != want {
		t.Fatalf("unexpected turn text %q", tr.Turns[0].Text)
	}

	tr, err = transcript.Structure([]string{
		"Jane Doe - Chief Financial Officer",
		"Operator: Please go ahead.",
		"Jane Doe: Thank you.",
		"Operator: Next question.",
	})
	if err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if len(tr.Turns) != 3 || tr.Turns[1].Role != transcript.RoleExecutive {
		t.Fatalf("expected known participant cue, got %+v", tr.Turns)
	}
}
