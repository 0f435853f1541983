// Package token encodes and validates the compact identity token issued for
// a committed registration. The token is a delimited, QR-encodable string;
// once issued it is never re-derived, even if contact fields change later.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	perrors "github.com/andeanconf/registration/internal/platform/errors"
	"github.com/andeanconf/registration/internal/registration/domain"
)

const (
	delimiter  = "|"
	fieldCount = 5
)

// ErrMalformedToken indicates a token that does not decode into the
// expected field count. It is surfaced only to token-consuming
// collaborators (attendance check-in); it never blocks registration.
var ErrMalformedToken = errors.New("identity token is malformed")

// Fields are the decoded token components.
type Fields struct {
	ShortName  string
	PhoneOrDNI string
	Role       string
	Company    string
	IssuedAt   time.Time
}

// Encode derives the identity token for a registrant at issue time.
//
// Layout: shortName|phoneOrDni|role|company|issuedAtEpoch. Fields are
// normalized on encode (delimiter stripped, accents folded), which keeps
// decoding unambiguous even for free-text company names.
func Encode(registrant domain.Registrant, issuedAt time.Time) string {
	parts := []string{
		shortName(registrant.FullName),
		Normalize(registrant.Phone),
		Normalize(registrant.Role),
		Normalize(registrant.Company),
		strconv.FormatInt(issuedAt.UTC().Unix(), 10),
	}
	return strings.Join(parts, delimiter)
}

// Decode splits a token into its fields. Failures carry the malformed-token
// code and still match ErrMalformedToken.
func Decode(tokenValue string) (Fields, error) {
	parts := strings.Split(tokenValue, delimiter)
	if len(parts) != fieldCount {
		return Fields{}, perrors.Wrap(
			perrors.CodeTokenMalformed,
			fmt.Sprintf("token has %d fields, want %d", len(parts), fieldCount),
			ErrMalformedToken,
		)
	}
	epoch, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return Fields{}, perrors.Wrap(
			perrors.CodeTokenMalformed,
			"token issue timestamp is not a number",
			ErrMalformedToken,
		)
	}
	return Fields{
		ShortName:  parts[0],
		PhoneOrDNI: parts[1],
		Role:       parts[2],
		Company:    parts[3],
		IssuedAt:   time.Unix(epoch, 0).UTC(),
	}, nil
}

// Validate reports whether a token plausibly belongs to a registrant.
// Comparison is tolerant: both sides pass through the same normalization
// used by downstream rendering, so accents and case differences do not
// invalidate a printed badge.
func Validate(tokenValue string, registrant domain.Registrant) bool {
	fields, err := Decode(tokenValue)
	if err != nil {
		return false
	}
	if normalizeForComparison(fields.ShortName) != normalizeForComparison(shortName(registrant.FullName)) {
		return false
	}
	if normalizeForComparison(fields.PhoneOrDNI) != normalizeForComparison(registrant.Phone) {
		return false
	}
	if normalizeForComparison(fields.Role) != normalizeForComparison(registrant.Role) {
		return false
	}
	if normalizeForComparison(fields.Company) != normalizeForComparison(registrant.Company) {
		return false
	}
	return true
}

// shortName takes the first three letters of the normalized name, uppercased.
func shortName(fullName string) string {
	normalized := strings.ToUpper(Normalize(fullName))
	runesOf := []rune(normalized)
	if len(runesOf) > 3 {
		runesOf = runesOf[:3]
	}
	return string(runesOf)
}
