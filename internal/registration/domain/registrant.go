package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andeanconf/registration/internal/platform/id"
)

var (
	// ErrEmptyEmail indicates a missing registrant email.
	ErrEmptyEmail = errors.New("email is required")
	// ErrEmptyFullName indicates a missing registrant name.
	ErrEmptyFullName = errors.New("full name is required")
)

// Registrant represents one attendee identified by email.
//
// SelectedSessions is a denormalized cache of the registrant's bookings.
// The Booking table is the source of truth; the cache is rewritten from it
// on every committed registration and reconciled by the auditor.
type Registrant struct {
	ID                  string
	FullName            string
	Email               string
	Phone               string
	Company             string
	Role                string
	Expectations        string
	// Token is the identity token issued on the first committed
	// registration. It is immutable afterwards, even if contact fields
	// change on later registrations.
	Token               string
	Confirmed           bool
	AttendanceConfirmed bool
	SelectedSessions    []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CreateRegistrantInput describes the contact fields of a first registration.
type CreateRegistrantInput struct {
	FullName     string
	Email        string
	Phone        string
	Company      string
	Role         string
	Expectations string
}

// CreateRegistrant constructs a new registrant with a generated ID, an empty
// selection set, and UTC timestamps.
func CreateRegistrant(input CreateRegistrantInput, now func() time.Time, idGenerator func() (string, error)) (Registrant, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateRegistrantInput(input)
	if err != nil {
		return Registrant{}, err
	}

	registrantID, err := idGenerator()
	if err != nil {
		return Registrant{}, fmt.Errorf("generate registrant id: %w", err)
	}

	createdAt := now().UTC()
	return Registrant{
		ID:           registrantID,
		FullName:     normalized.FullName,
		Email:        normalized.Email,
		Phone:        normalized.Phone,
		Company:      normalized.Company,
		Role:         normalized.Role,
		Expectations: normalized.Expectations,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// NormalizeCreateRegistrantInput trims contact fields and lowercases the
// email, which is the correlation key for identity resolution.
func NormalizeCreateRegistrantInput(input CreateRegistrantInput) (CreateRegistrantInput, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	input.Company = strings.TrimSpace(input.Company)
	input.Role = strings.TrimSpace(input.Role)
	input.Expectations = strings.TrimSpace(input.Expectations)

	if input.Email == "" {
		return CreateRegistrantInput{}, ErrEmptyEmail
	}
	if input.FullName == "" {
		return CreateRegistrantInput{}, ErrEmptyFullName
	}
	return input, nil
}

// NormalizeEmail canonicalizes an email for exact-match lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
