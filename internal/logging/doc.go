// Package logging configures structured slog output for invsearch.
// Logs are JSON lines written to a size-rotated file under ~/.invsearch/logs/
// and, unless disabled, mirrored to stderr.
//
// The level is held in a shared slog.LevelVar so a running server can change
// verbosity when its configuration file is reloaded.
package logging
