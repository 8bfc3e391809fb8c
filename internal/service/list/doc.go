// Package list implements FIFO-ordered list membership.
//
// Every list is an append-only sequence: a contact's position is assigned
// once, when it first joins, and is never renumbered. Removal is a soft
// delete, so the relative order of the survivors is exactly the original
// registration order. Batch creation and rebalancing both depend on that
// contract.
package list
