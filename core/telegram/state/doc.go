// Package state keeps per-user conversation sessions for multi-step Telegram flows.
// It stores the current step and string draft fields; what the steps mean is up to the caller.
package state
