// Package lead implements lead lifecycle management.
//
// The service layer owns the lead state machine: every status change in the
// pipeline goes through Transition, which enforces the allowed edges, and
// through the explicit operator actions (reset, decline, unsubscribe). It
// depends on the repository interface defined in this package and should
// never import from api/.
//
// Repository implementations live in repository/postgres/.
package lead
