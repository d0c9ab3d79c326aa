// Package server runs the HTTP listener and coordinates graceful shutdown.
//
// Shutdown state lives on the Server value: a draining flag that
// RejectWhenDraining consults for new login attempts, and a counter of
// requests in flight. Callbacks and token redemptions already under way are
// allowed to complete until the shutdown deadline.
package server
