// Package roster loads the company roster and parses reporting periods.
//
// The roster is a JSON document ({"companies": [...]}) naming every company
// the pipeline tracks, with optional SEC and earnings-call metadata. It is read
// once per run and treated as immutable afterwards.
package roster
