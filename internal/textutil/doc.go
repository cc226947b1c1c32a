// Package textutil provides small text helpers for naming on-disk artifacts
// and feed entries.
package textutil
