// Package logging provides a tiny abstraction over slog so downstream code
// can depend on a minimal interface (Logger) while allowing users to plug
// any structured logger. It also offers a richer DialMeshLogger with
// contextual helpers (campaign, session, component) and domain specific
// helpers for call lifecycle, provider calls and conversation turns.
package logging
