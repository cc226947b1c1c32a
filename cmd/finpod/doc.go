// Package main hosts the finpod CLI.
//
// The Cobra command tree loads configuration and the company roster, wires
// the transcript sources, script engine, synthesizer, and feed publisher into
// the stage pipeline, and hands targets to the workflow manager. Inspection
// commands (structure, state, roster, config) work offline and never touch a
// collaborator.
package main
