// Package config loads, normalizes, and validates finpod configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, merges credentials from a .env file, and
// honours environment fallbacks such as FINPOD_LLM_API_KEY and SEC_IDENTITY.
// The Config type centralizes every knob the pipeline and CLI need, so
// staging directories, the state database, and collaborator credentials are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
