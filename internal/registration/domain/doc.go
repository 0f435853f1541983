// Package domain contains the core registration types and the pure
// conflict-resolution rules: registrants, the session catalog, bookings,
// and the partitioning of a requested session batch into accepted and
// rejected entries.
package domain
