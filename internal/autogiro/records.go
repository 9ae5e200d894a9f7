// Package autogiro implements the Swedish direct-debit dialect: one
// fixed-width 80-character line per logical operation, dispatched on a
// 2-digit transaction code at the start of the line. Dates are 8-digit
// YYYYMMDD, amounts are 12-digit zero-padded öre.
package autogiro

import (
	"fmt"
	"time"
)

const (
	// RecordLen is the fixed width of every record line.
	RecordLen = 80

	// Transaction codes.
	codeOpening         = "01"
	codeMandateCancel   = "24"
	codeOutgoingPayment = "32"
	codeEMandate        = "65"
	codeMandateAdvice   = "73"
	codeRejectedCharge  = "80"
	codeIncomingPayment = "82"
)

// Mandate advice information codes.
const (
	AdviceAdd       = "04"
	AdviceConfirm   = "05"
	AdviceCancelled = "46"
)

// Field widths shared across record types.
const (
	payerNoLen   = 16
	amountLen    = 12
	referenceLen = 16
	bankgiroLen  = 10
	customerLen  = 6
)

// Opening is the file header record, exactly one per file.
type Opening struct {
	Date       time.Time
	CustomerNo string
	BankgiroNo string
}

// Payment is one settled withdrawal or refund.
type Payment struct {
	Date      time.Time
	PayerNo   string // the KID-carrying payer number
	AmountOre int64
	Reference string
	Outgoing  bool
}

// MandateAdvice reports a mandate change from the bank.
type MandateAdvice struct {
	BankgiroNo string
	PayerNo    string
	InfoCode   string // AdviceAdd, AdviceConfirm or AdviceCancelled
	Date       time.Time
}

// EMandate is a mandate signed in the payer's internet bank.
type EMandate struct {
	BankgiroNo   string
	PayerNo      string
	PayerAccount string
	IDNumber     string
}

// RejectedCharge is a withdrawal the bank refused.
type RejectedCharge struct {
	Date       time.Time
	PayerNo    string
	AmountOre  int64
	Reference  string
	RejectCode string
}

func formatDate(t time.Time) string {
	return t.Format("20060102")
}

func validPayerNo(no string) error {
	if no == "" || len(no) > payerNoLen {
		return fmt.Errorf("autogiro: payer number %q must be 1-%d digits", no, payerNoLen)
	}
	for i := 0; i < len(no); i++ {
		if no[i] < '0' || no[i] > '9' {
			return fmt.Errorf("autogiro: payer number %q is not numeric", no)
		}
	}
	return nil
}
