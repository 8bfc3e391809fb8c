// Package suppression decides and records whether a contact may receive
// further sends.
//
// The history is append-only: current status is a projection of the latest
// active entry, and reactivation deactivates entries instead of deleting
// them, so the audit trail survives. Hard bounces and spam complaints are
// permanent; soft bounces are promoted once the per-contact counter reaches
// a configurable threshold.
//
// Suppression checks read the cache first and fail OPEN: on any read error
// the contact is treated as sendable. Blocking legitimate mail on a
// transient read error is the worse failure mode here.
package suppression
