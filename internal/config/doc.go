// Package config loads tokenx configuration.
//
// Sources, lowest precedence first:
//
//  1. Defaults from the embedded CUE schema
//  2. A CUE config file (tokenx.cue)
//  3. A .env file
//  4. TOKENX_* environment variables
//
// Command-line flags are applied on top by the cli package. The merged
// result is checked against the schema again, so every source is held to
// the same constraints.
package config
