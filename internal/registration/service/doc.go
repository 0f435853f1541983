// Package service orchestrates registration attempts: identity resolution,
// conflict validation over a read snapshot, atomic seat reservation, and the
// transactional persist that keeps the selection cache equal to booking
// truth. Same-registrant requests are serialized on an email-keyed lock;
// different registrants only contend on the per-session seat counters.
package service
