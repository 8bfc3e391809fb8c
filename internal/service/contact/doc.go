// Package contact implements contact identity and bounce accounting.
//
// A contact is created on first sighting, either through a list import or a
// bounce event referencing an unknown email, and is never hard-deleted.
// Bounce counters only move up; status transitions flow toward suppressed
// and only an explicit reactivation reverses them.
//
// The service layer depends on the Repository interface in repository.go
// and never imports net/http or database/sql directly.
package contact
