// Package config centralizes environment-driven configuration for the
// device gate: database, SMTP, and gate behavior settings. The structs
// carry cleanenv env tags and are read by the cmd entrypoints with
// cleanenv.ReadEnv.
package config
