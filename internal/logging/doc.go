// Package logging configures structured slog output for foldersearch.
// Logs go to a size-rotated JSON file under ~/.foldersearch/logs/; with --debug
// the level drops to debug and entries are also copied to stderr.
//
// The MCP server never writes logs to stdout or stderr, since stdout carries
// the JSON-RPC stream.
package logging
