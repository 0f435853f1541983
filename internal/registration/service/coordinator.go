package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/andeanconf/registration/internal/notify"
	perrors "github.com/andeanconf/registration/internal/platform/errors"
	"github.com/andeanconf/registration/internal/registration/domain"
	"github.com/andeanconf/registration/internal/registration/storage"
	"github.com/andeanconf/registration/internal/registration/token"
)

// CoordinatorConfig wires the coordinator's collaborators. Clock, NewID,
// and StoreTimeout are optional; zero values select production defaults.
type CoordinatorConfig struct {
	Store        storage.Store
	Notifier     notify.Notifier
	Clock        func() time.Time
	NewID        func() (string, error)
	StoreTimeout time.Duration
}

// Coordinator runs registration attempts as a transactional state machine:
// Validating → Reserving → Persisting → Committed, compensating reserved
// seats on any failure past Reserving.
type Coordinator struct {
	store        storage.Store
	notifier     notify.Notifier
	resolver     *IdentityResolver
	catalog      *sessionCatalog
	clock        func() time.Time
	storeTimeout time.Duration
	locks        registrantLocks
	tracer       trace.Tracer
}

// NewCoordinator creates a coordinator over the given store and notifier.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Coordinator{
		store:        cfg.Store,
		notifier:     notifier,
		resolver:     NewIdentityResolver(cfg.Store, clock, cfg.NewID),
		catalog:      newSessionCatalog(cfg.Store),
		clock:        clock,
		storeTimeout: cfg.StoreTimeout,
		tracer:       otel.Tracer("registration/service"),
	}
}

// RegisterInput is one inbound registration request.
type RegisterInput struct {
	Contact    domain.CreateRegistrantInput
	SessionIDs []string
}

// RegisterResult is the outcome of one registration attempt. On a
// rejected-only request the result still itemizes rejections even though
// Register also returns an error.
type RegisterResult struct {
	Success      bool
	Mode         Mode
	State        State
	Accepted     []string
	Rejected     []domain.Rejection
	RegistrantID string
	Token        string
}

// Register resolves the attendee's identity, partitions the requested
// sessions, reserves seats through the conditional update, and commits the
// registration in a single transaction. Requests for the same email are
// serialized; any failure after reservation releases this attempt's seats
// before the error surfaces.
func (c *Coordinator) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	if c == nil || c.store == nil {
		return RegisterResult{}, perrors.New(perrors.CodeStorageFailure, "registration store is not configured")
	}

	contact, err := domain.NormalizeCreateRegistrantInput(input.Contact)
	if err != nil {
		return RegisterResult{State: StateValidating}, contactError(err)
	}
	if len(input.SessionIDs) == 0 {
		return RegisterResult{State: StateValidating}, perrors.New(
			perrors.CodeRegistrationNoSessionsRequested,
			"at least one session id is required",
		)
	}

	ctx, span := c.tracer.Start(ctx, "registration.Register",
		trace.WithAttributes(attribute.Int("registration.requested", len(input.SessionIDs))),
	)
	defer span.End()

	if c.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.storeTimeout)
		defer cancel()
	}

	release := c.locks.acquire(contact.Email)
	defer release()

	result, err := c.register(ctx, contact, input.SessionIDs)
	span.SetAttributes(
		attribute.String("registration.state", string(result.State)),
		attribute.String("registration.mode", string(result.Mode)),
		attribute.Int("registration.accepted", len(result.Accepted)),
		attribute.Int("registration.rejected", len(result.Rejected)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(perrors.GetCode(err)))
	}
	return result, err
}

func (c *Coordinator) register(ctx context.Context, contact domain.CreateRegistrantInput, sessionIDs []string) (RegisterResult, error) {
	// Validating: resolve identity and partition the batch over one
	// consistent read snapshot. Nothing is written in this phase.
	result := RegisterResult{State: StateValidating}

	registrant, mode, err := c.resolver.Resolve(ctx, contact)
	if err != nil {
		return result, storageError("resolve identity", err)
	}
	result.Mode = mode
	result.RegistrantID = registrant.ID

	snapshot, err := c.readSnapshot(ctx, registrant, mode, sessionIDs)
	if err != nil {
		return result, err
	}

	partition, err := domain.PartitionRequest(sessionIDs, snapshot)
	if err != nil {
		var unknown *domain.UnknownSessionsError
		if errors.As(err, &unknown) {
			return result, perrors.WithMetadata(
				perrors.CodeRegistrationSessionNotFound,
				err.Error(),
				map[string]string{"session_ids": strings.Join(unknown.SessionIDs, ",")},
			)
		}
		return result, storageError("validate request", err)
	}
	result.Rejected = partition.Rejected

	if len(partition.Accepted) == 0 && len(partition.AlreadyBooked) == 0 {
		result.State = StateRolledBack
		return result, perrors.New(
			perrors.CodeRegistrationNothingAccepted,
			"no requested session could be accepted",
		)
	}

	// Reserving: one conditional update per accepted session. A lost seat
	// demotes the session to capacity_full; the final accepted set is
	// re-derived afterwards.
	result.State = StateReserving
	reserved := make([]string, 0, len(partition.Accepted))
	finalAccepted := make([]string, 0, len(partition.Accepted))
	for _, sessionID := range partition.Accepted {
		ok, err := c.store.ReserveSeat(ctx, sessionID)
		if err != nil {
			c.releaseSeats(ctx, reserved)
			result.State = StateRolledBack
			return result, storageError("reserve seat", err)
		}
		if !ok {
			result.Rejected = append(result.Rejected, domain.Rejection{
				SessionID: sessionID,
				Reason:    domain.ReasonCapacityFull,
				Detail:    "seat taken by a concurrent registration",
			})
			continue
		}
		reserved = append(reserved, sessionID)
		finalAccepted = append(finalAccepted, sessionID)
	}

	if len(finalAccepted) == 0 && len(partition.AlreadyBooked) == 0 {
		result.State = StateRolledBack
		return result, perrors.New(
			perrors.CodeRegistrationNothingAccepted,
			"every requested seat was taken concurrently",
		)
	}

	// Persisting: registrant upsert, idempotent booking inserts, and the
	// cache rewrite commit together or not at all.
	result.State = StatePersisting
	registrant = applyContact(registrant, contact)
	if registrant.Token == "" {
		// First committed registration issues the identity token. The
		// store keeps an existing token even if contact fields change.
		registrant.Token = token.Encode(registrant, c.clock().UTC())
	}
	persisted, err := c.store.PersistRegistration(ctx, registrant, finalAccepted, c.clock().UTC())
	if err != nil {
		c.releaseSeats(ctx, reserved)
		result.State = StateRolledBack
		return result, storageError("persist registration", err)
	}
	if mode == ModeNew && !persisted.Created {
		// Lost the first-registration race; the commit was an update.
		result.Mode = ModeExisting
	}
	// Bookings already held by the canonical row were ignored by the
	// persist, so the seats reserved for them here are double counts.
	c.releaseSeats(ctx, reservedIntersection(reserved, persisted.Duplicates))
	result.RegistrantID = persisted.Registrant.ID

	result.State = StateCommitted
	result.Success = true
	result.Accepted = acceptedInRequestOrder(sessionIDs, finalAccepted, partition.AlreadyBooked)
	result.Token = persisted.Registrant.Token

	c.notifyCommitted(ctx, persisted.Registrant, result, snapshot)
	return result, nil
}

// SetSessionAvailability opens or closes a session to new bookings and
// drops its cached catalog row so the change is visible immediately.
func (c *Coordinator) SetSessionAvailability(ctx context.Context, sessionID string, available bool) error {
	if c == nil || c.store == nil {
		return perrors.New(perrors.CodeStorageFailure, "registration store is not configured")
	}
	if err := c.store.SetSessionAvailability(ctx, sessionID, available); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return perrors.Wrap(perrors.CodeNotFound, "session not found", err)
		}
		return storageError("set session availability", err)
	}
	c.catalog.invalidate(sessionID)
	return nil
}

// readSnapshot loads the immutable per-request view: catalog rows for the
// requested ids and the slots the registrant already occupies.
func (c *Coordinator) readSnapshot(ctx context.Context, registrant domain.Registrant, mode Mode, sessionIDs []string) (domain.RequestSnapshot, error) {
	snapshot := domain.RequestSnapshot{
		BookedSessions: make(map[string]struct{}),
		BookedSlots:    make(map[domain.Slot]string),
	}

	sessions, err := c.catalog.lookup(ctx, sessionIDs)
	if err != nil {
		return domain.RequestSnapshot{}, storageError("load session catalog", err)
	}
	snapshot.Sessions = sessions

	if mode != ModeExisting {
		return snapshot, nil
	}

	bookings, err := c.store.ListBookingsByRegistrant(ctx, registrant.ID)
	if err != nil {
		return domain.RequestSnapshot{}, storageError("load bookings", err)
	}
	if len(bookings) == 0 {
		return snapshot, nil
	}

	bookedIDs := make([]string, 0, len(bookings))
	for _, booking := range bookings {
		snapshot.BookedSessions[booking.SessionID] = struct{}{}
		bookedIDs = append(bookedIDs, booking.SessionID)
	}
	bookedSessions, err := c.catalog.lookup(ctx, bookedIDs)
	if err != nil {
		return domain.RequestSnapshot{}, storageError("load booked sessions", err)
	}
	for sessionID, session := range bookedSessions {
		snapshot.BookedSlots[session.Slot()] = sessionID
	}
	return snapshot, nil
}

// releaseSeats compensates reservations from a failed attempt. It runs on
// a detached context: a cancelled request must still give its seats back.
func (c *Coordinator) releaseSeats(ctx context.Context, sessionIDs []string) {
	if len(sessionIDs) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, sessionID := range sessionIDs {
		if err := c.store.ReleaseSeat(detached, sessionID); err != nil {
			log.Printf("release seat failed session_id=%s error=%v", sessionID, err)
		}
	}
}

// notifyCommitted hands the committed registration to the notification
// collaborator. Failures are logged and never affect the commit.
func (c *Coordinator) notifyCommitted(ctx context.Context, registrant domain.Registrant, result RegisterResult, snapshot domain.RequestSnapshot) {
	if c.notifier == nil {
		return
	}
	sessions := make([]domain.Session, 0, len(result.Accepted))
	for _, sessionID := range result.Accepted {
		if session, ok := snapshot.Sessions[sessionID]; ok {
			sessions = append(sessions, session)
		}
	}
	confirmation := notify.Confirmation{
		RegistrantID: registrant.ID,
		Email:        registrant.Email,
		Token:        result.Token,
		Sessions:     sessions,
	}
	if err := c.notifier.NotifyRegistration(context.WithoutCancel(ctx), confirmation); err != nil {
		log.Printf("notify registration failed registrant_id=%s error=%v", registrant.ID, err)
	}
}

// applyContact overlays this request's contact fields onto the resolved
// identity. The store keeps the existing value for any blank optional field.
func applyContact(registrant domain.Registrant, contact domain.CreateRegistrantInput) domain.Registrant {
	registrant.FullName = contact.FullName
	registrant.Phone = contact.Phone
	registrant.Company = contact.Company
	registrant.Role = contact.Role
	registrant.Expectations = contact.Expectations
	return registrant
}

// acceptedInRequestOrder merges newly accepted and already-booked ids back
// into the order the caller submitted them.
func acceptedInRequestOrder(requested, accepted, alreadyBooked []string) []string {
	include := make(map[string]struct{}, len(accepted)+len(alreadyBooked))
	for _, sessionID := range accepted {
		include[sessionID] = struct{}{}
	}
	for _, sessionID := range alreadyBooked {
		include[sessionID] = struct{}{}
	}
	ordered := make([]string, 0, len(include))
	for _, sessionID := range requested {
		if _, ok := include[sessionID]; ok {
			ordered = append(ordered, sessionID)
			delete(include, sessionID)
		}
	}
	return ordered
}

// reservedIntersection returns the duplicate ids this attempt actually
// reserved a seat for. Duplicates outside the reserved set took no seat
// and need no compensation.
func reservedIntersection(reserved, duplicates []string) []string {
	if len(reserved) == 0 || len(duplicates) == 0 {
		return nil
	}
	held := make(map[string]struct{}, len(reserved))
	for _, sessionID := range reserved {
		held[sessionID] = struct{}{}
	}
	var overlap []string
	for _, sessionID := range duplicates {
		if _, ok := held[sessionID]; ok {
			overlap = append(overlap, sessionID)
		}
	}
	return overlap
}

func contactError(err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyEmail):
		return perrors.Wrap(perrors.CodeRegistrationEmailRequired, "email is required", err)
	case errors.Is(err, domain.ErrEmptyFullName):
		return perrors.Wrap(perrors.CodeRegistrationNameRequired, "full name is required", err)
	default:
		return perrors.Wrap(perrors.CodeUnknown, "invalid contact", err)
	}
}

// storageError classifies infrastructure failures. Timeouts surface as
// their own code and are never retried here; the whole request is safely
// retriable by the caller because persistence is a union-merge.
func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return perrors.Wrap(perrors.CodeStorageTimeout, fmt.Sprintf("%s timed out", op), err)
	}
	if errors.Is(err, context.Canceled) {
		return perrors.Wrap(perrors.CodeStorageTimeout, fmt.Sprintf("%s canceled", op), err)
	}
	return perrors.Wrap(perrors.CodeStorageFailure, fmt.Sprintf("%s failed", op), err)
}
