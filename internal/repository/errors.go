// Package repository defines sentinel error values that are reused across
// multiple repositories. They let handlers distinguish failure scenarios
// without inspecting driver errors: ErrEventNotFound becomes a 404 on the
// booking path, ErrPushRequestNotFound makes the callback reconciler
// acknowledge the provider with a rejection code, and so on.
package repository

import "errors"

// ErrEventNotFound is returned when an event id does not exist. The
// booking orchestrator translates it into an HTTP 404 before any row
// is written.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when a ticket id does not exist.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrPushRequestNotFound is returned when no push request row matches a
// checkout request id. A callback carrying an unknown correlation id is
// acknowledged to the provider as a failure and logged prominently.
var ErrPushRequestNotFound = errors.New("push request not found")

// ErrVenueNotFound is returned when a venue id does not exist.
var ErrVenueNotFound = errors.New("venue not found")

// ErrNoChange indicates an UPDATE attempted to set fields equal to the
// current values. Handlers usually report this as a 200 with a notice.
var ErrNoChange = errors.New("no change")
