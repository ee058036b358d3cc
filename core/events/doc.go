// Package events defines the tagged event variants exchanged between the
// signaling ingress, the session orchestrator, and the client-facing surface.
//
// Every boundary crossing is expressed as a typed event with a stable Kind.
// Consumers switch on the concrete type; unknown kinds arriving from the
// wire are ignored at the boundary, never turned into errors.
package events
