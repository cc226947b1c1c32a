// Package tts converts episode scripts into audio through an OpenAI-style
// speech endpoint.
//
// Scripts longer than the endpoint's input limit are split at paragraph and
// sentence boundaries; the per-chunk audio is concatenated in order, which is
// valid for frame-based formats such as mp3. A call is a single attempt per
// chunk and failures carry services markers for the retry executor.
package tts
