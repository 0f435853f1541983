package domain

import (
	"fmt"
	"strings"
)

// RejectionReason classifies why one requested session was not booked.
type RejectionReason string

const (
	// ReasonSlotConflict indicates the session's (date, time) collides with
	// an existing booking or an earlier accepted session in the same batch.
	ReasonSlotConflict RejectionReason = "slot_conflict"
	// ReasonCapacityFull indicates the session has no seats left.
	ReasonCapacityFull RejectionReason = "capacity_full"
	// ReasonSessionNotFound indicates the session id is not in the catalog.
	ReasonSessionNotFound RejectionReason = "session_not_found"
)

// Rejection is one per-session refusal. Rejections are data, not errors:
// a request that accepts at least one session still succeeds.
type Rejection struct {
	SessionID string
	Reason    RejectionReason
	Detail    string
}

// UnknownSessionsError aborts a whole request: any id absent from the
// catalog invalidates the batch before any write happens.
type UnknownSessionsError struct {
	SessionIDs []string
}

func (e *UnknownSessionsError) Error() string {
	return fmt.Sprintf("unknown session ids: %s", strings.Join(e.SessionIDs, ", "))
}

// RequestSnapshot is the immutable read the validator works against. It is
// taken once per request; live capacity is re-checked later by the seat
// ledger's conditional update.
type RequestSnapshot struct {
	// Sessions holds the catalog rows for the requested ids that exist.
	Sessions map[string]Session
	// BookedSessions holds the session ids the registrant already holds.
	BookedSessions map[string]struct{}
	// BookedSlots maps an occupied (date, time) slot to the session id the
	// registrant already holds in it.
	BookedSlots map[Slot]string
}

// Partition is the outcome of validating one requested batch.
type Partition struct {
	// Accepted lists newly accepted session ids, in request order. These
	// are the ids to reserve seats for and insert bookings for.
	Accepted []string
	// AlreadyBooked lists requested ids the registrant already holds.
	// Re-submission is not an error; these are reported as accepted but
	// neither reserve a seat nor insert a booking.
	AlreadyBooked []string
	// Rejected lists refusals with reasons, in request order.
	Rejected []Rejection
}

// PartitionRequest classifies every requested session id against the
// snapshot, first-match-wins in request order.
//
// Any unknown id fails the whole batch with UnknownSessionsError before any
// classification output is produced. Duplicate ids within the batch are
// collapsed to their first occurrence.
func PartitionRequest(requested []string, snap RequestSnapshot) (Partition, error) {
	var unknown []string
	for _, sessionID := range requested {
		if _, ok := snap.Sessions[sessionID]; !ok {
			unknown = append(unknown, sessionID)
		}
	}
	if len(unknown) > 0 {
		return Partition{}, &UnknownSessionsError{SessionIDs: unknown}
	}

	var out Partition
	seen := make(map[string]struct{}, len(requested))
	claimedSlots := make(map[Slot]string, len(requested))

	for _, sessionID := range requested {
		if _, dup := seen[sessionID]; dup {
			continue
		}
		seen[sessionID] = struct{}{}

		session := snap.Sessions[sessionID]

		if _, held := snap.BookedSessions[sessionID]; held {
			out.AlreadyBooked = append(out.AlreadyBooked, sessionID)
			continue
		}

		slot := session.Slot()
		if heldID, taken := snap.BookedSlots[slot]; taken {
			out.Rejected = append(out.Rejected, Rejection{
				SessionID: sessionID,
				Reason:    ReasonSlotConflict,
				Detail:    fmt.Sprintf("already booked in slot %s (session %s)", slot, heldID),
			})
			continue
		}
		if claimedID, claimed := claimedSlots[slot]; claimed {
			out.Rejected = append(out.Rejected, Rejection{
				SessionID: sessionID,
				Reason:    ReasonSlotConflict,
				Detail:    fmt.Sprintf("conflicts with requested session %s in slot %s", claimedID, slot),
			})
			continue
		}

		if !session.Available {
			out.Rejected = append(out.Rejected, Rejection{
				SessionID: sessionID,
				Reason:    ReasonCapacityFull,
				Detail:    "session is closed to new bookings",
			})
			continue
		}
		if session.SeatsLeft() == 0 {
			out.Rejected = append(out.Rejected, Rejection{
				SessionID: sessionID,
				Reason:    ReasonCapacityFull,
				Detail:    fmt.Sprintf("all %d seats taken", session.Capacity),
			})
			continue
		}

		claimedSlots[slot] = sessionID
		out.Accepted = append(out.Accepted, sessionID)
	}

	return out, nil
}
