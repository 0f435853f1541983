package token

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	perrors "github.com/andeanconf/registration/internal/platform/errors"
	"github.com/andeanconf/registration/internal/registration/domain"
)

func testRegistrant() domain.Registrant {
	return domain.Registrant{
		ID:       "reg-1",
		FullName: "María Muñoz",
		Phone:    "44556677",
		Role:     "Backend Dev",
		Company:  "ACME",
		Email:    "maria@example.com",
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	issuedAt := time.Date(2025, time.September, 1, 15, 4, 5, 0, time.UTC)
	encoded := Encode(testRegistrant(), issuedAt)

	fields, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fields.ShortName != "MAR" {
		t.Fatalf("short name = %q, want MAR", fields.ShortName)
	}
	if fields.PhoneOrDNI != "44556677" {
		t.Fatalf("phone = %q, want 44556677", fields.PhoneOrDNI)
	}
	if fields.Role != "Backend Dev" {
		t.Fatalf("role = %q, want Backend Dev", fields.Role)
	}
	if fields.Company != "ACME" {
		t.Fatalf("company = %q, want ACME", fields.Company)
	}
	if !fields.IssuedAt.Equal(issuedAt) {
		t.Fatalf("issued at = %v, want %v", fields.IssuedAt, issuedAt)
	}
}

func TestEncodeFoldsAccents(t *testing.T) {
	registrant := testRegistrant()
	registrant.Company = "Peña & Asociados"
	encoded := Encode(registrant, time.Unix(1756732800, 0))

	fields, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fields.Company != "Pena & Asociados" {
		t.Fatalf("company = %q, want accent-folded", fields.Company)
	}
}

func TestEncodeStripsDelimiterFromFields(t *testing.T) {
	registrant := testRegistrant()
	registrant.Company = "ACME|Labs"
	encoded := Encode(registrant, time.Unix(1756732800, 0))

	if strings.Count(encoded, "|") != 4 {
		t.Fatalf("encoded = %q, want exactly 4 delimiters", encoded)
	}
	if _, err := Decode(encoded); err != nil {
		t.Fatalf("decode after sanitizing: %v", err)
	}
}

func TestDecodeRejectsWrongFieldCount(t *testing.T) {
	for _, tokenValue := range []string{"", "a|b|c", "a|b|c|d|e|f"} {
		_, err := Decode(tokenValue)
		if !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("Decode(%q) err = %v, want ErrMalformedToken", tokenValue, err)
		}
		if !perrors.IsCode(err, perrors.CodeTokenMalformed) {
			t.Fatalf("Decode(%q) err = %v, want code %v", tokenValue, err, perrors.CodeTokenMalformed)
		}
	}
}

func TestDecodeRejectsBadTimestamp(t *testing.T) {
	_, err := Decode("MAR|44556677|Dev|ACME|not-a-number")
	if !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("err = %v, want ErrMalformedToken", err)
	}
	if !perrors.IsCode(err, perrors.CodeTokenMalformed) {
		t.Fatalf("err = %v, want code %v", err, perrors.CodeTokenMalformed)
	}
}

func TestValidateTolerantComparison(t *testing.T) {
	registrant := testRegistrant()
	encoded := Encode(registrant, time.Unix(1756732800, 0))

	// Contact record later stored with folded accents and different casing.
	stored := registrant
	stored.FullName = "MARIA MUNOZ"
	stored.Role = "backend dev"
	if !Validate(encoded, stored) {
		t.Fatal("expected token to validate under normalization")
	}

	other := registrant
	other.Phone = "99999999"
	if Validate(encoded, other) {
		t.Fatal("expected token not to validate for a different phone")
	}
	if Validate("garbage", registrant) {
		t.Fatal("expected malformed token not to validate")
	}
}

func TestNormalizeClampsLength(t *testing.T) {
	long := strings.Repeat("a", 80)
	if got := Normalize(long); len(got) != 24 {
		t.Fatalf("normalized length = %d, want 24", len(got))
	}
}

func TestNormalizeClampsByRunesNotBytes(t *testing.T) {
	// ø has no combining mark, so accent folding keeps it multibyte. A
	// byte-indexed clamp would cut its encoding in half.
	long := strings.Repeat("ø", 80)
	got := Normalize(long)
	if !utf8.ValidString(got) {
		t.Fatalf("normalized %q is not valid UTF-8", got)
	}
	if count := utf8.RuneCountInString(got); count != 24 {
		t.Fatalf("normalized rune count = %d, want 24", count)
	}

	mixed := "Søren Kierkegaard anniversary lecture"
	got = Normalize(mixed)
	if !utf8.ValidString(got) {
		t.Fatalf("normalized %q is not valid UTF-8", got)
	}
	if count := utf8.RuneCountInString(got); count != 24 {
		t.Fatalf("normalized rune count = %d, want 24", count)
	}
}
