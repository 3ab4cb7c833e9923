// Package state keeps per-user conversation sessions for Telegram bots.
// A session is keyed by user and flow name, so one user may hold several
// independent dialogues. It is intentionally domain-agnostic.
package state
