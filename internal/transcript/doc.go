// Package transcript turns raw earnings-call and filing text into a
// StructuredTranscript.
//
// Normalize cleans raw text into a canonical line sequence (page furniture,
// legal boilerplate, and timestamps removed). Structure then runs a small
// finite-state segmenter over those lines: state is the current section and
// the current speaker turn, so sections can only ever move forward from
// prepared remarks to Q&A. Speaker roles are inferred from titles that appear
// next to names in cues and in the participant listing at the top of a call.
package transcript
