// Package session sequences the import pipeline: source preparation,
// entry-point resolution, and the supervised parse. One Orchestrator runs
// one session at a time and owns the lifetime of every temporary resource
// the session creates.
package session
