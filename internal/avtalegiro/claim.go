// Package avtalegiro encodes outbound Norwegian direct-debit claim files
// and parses them back for receipt verification. The wire format is
// fixed-width 80-character ASCII records, CRLF terminated, zero-padded on
// the right.
package avtalegiro

import (
	"fmt"
	"strings"
	"time"

	"github.com/haakonmt/girobatch/internal/kid"
)

const (
	// RecordLen is the fixed width of every record line.
	RecordLen = 80

	serviceTransmission = 0
	serviceAvtaleGiro   = 21

	recordTransmissionStart = 10
	recordAssignmentStart   = 20
	recordClaimAmount       = 30
	recordClaimName         = 31
	recordAssignmentEnd     = 88
	recordTransmissionEnd   = 89

	// Transaction codes: 02 means the bank sends no payer notice, 21
	// means the payer is notified before the due date.
	txCodeNoNotice = 2
	txCodeNotice   = 21

	// shortNameLen is the width of the payer name field on claim line 2.
	shortNameLen = 10
)

// Claim is one direct-debit demand against an agreement.
type Claim struct {
	KID       string
	AmountOre int64
	DueDate   time.Time
	Notice    bool
	DonorName string
}

// Validate checks the claim against the wire contract before encoding.
func (c Claim) Validate() error {
	if !kid.Valid(c.KID) {
		return fmt.Errorf("avtalegiro: claim KID %q failed checksum validation", c.KID)
	}
	if len(c.KID) > 25 {
		return fmt.Errorf("avtalegiro: claim KID %q exceeds 25 digits", c.KID)
	}
	if c.AmountOre <= 0 {
		return fmt.Errorf("avtalegiro: claim amount %d must be positive", c.AmountOre)
	}
	if c.DueDate.IsZero() {
		return fmt.Errorf("avtalegiro: claim due date is required")
	}
	return nil
}

func (c Claim) txCode() int {
	if c.Notice {
		return txCodeNotice
	}
	return txCodeNoNotice
}

// Batch is the input to one claim-file generation.
type Batch struct {
	Seq       int64  // shipment sequence, reused as transmission and assignment number
	SenderID  string // 8-digit data sender id agreed with the bank
	AccountNo string // 11-digit account the claims settle against
	Claims    []Claim
}

// Totals aggregates a claim set the way the end records declare it.
type Totals struct {
	Count  int
	SumOre int64
	MinDue time.Time
	MaxDue time.Time
}

func totalsOf(claims []Claim) Totals {
	t := Totals{Count: len(claims)}
	for i, c := range claims {
		t.SumOre += c.AmountOre
		if i == 0 || c.DueDate.Before(t.MinDue) {
			t.MinDue = c.DueDate
		}
		if i == 0 || c.DueDate.After(t.MaxDue) {
			t.MaxDue = c.DueDate
		}
	}
	return t
}

// ShortName normalizes a payer display name for the claim name record:
// uppercased, internal whitespace stripped, truncated to 10 characters.
func ShortName(name string) string {
	joined := strings.Join(strings.Fields(strings.ToUpper(name)), "")
	if len(joined) > shortNameLen {
		return joined[:shortNameLen]
	}
	return joined
}

func formatDate(t time.Time) string {
	return t.Format("020106")
}
