// Package ocr decodes inbound reconciliation files from the bank. Files
// carry fixed-width 80-character records; only payment transaction
// records are decoded, every other record type (headers, footers,
// assignment bounds) is skipped.
package ocr

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/haakonmt/girobatch/internal/domain"
)

const (
	// RecordLen is the fixed width of every record line.
	RecordLen = 80

	// serviceCodeOCR marks records belonging to the OCR giro service.
	serviceCodeOCR = 9
	// recordTypePayment marks the first line of a payment transaction.
	recordTypePayment = 30
)

// Field byte ranges, half-open. Lines start with the "NY" prefix.
const (
	svcStart    = 2
	svcEnd      = 4
	txCodeStart = 4
	txCodeEnd   = 6
	recStart    = 6
	recEnd      = 8
	numStart    = 8
	numEnd      = 15
	dateStart   = 15
	dateEnd     = 21
	refStart    = 21
	refEnd      = 32
	amountStart = 32
	amountEnd   = 49
	kidStart    = 49
	kidEnd      = 74
)

// Century prefixed to the two-digit year in record dates.
const centuryPrefix = 20

// FormatError reports a matched record whose required field could not be
// parsed. It aborts the current file's parse.
type FormatError struct {
	Line  int
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("ocr: line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Transaction is one decoded payment, consumed once by reconciliation.
type Transaction struct {
	ServiceCode     int
	TransactionCode int
	RecordType      int
	Number          string
	Date            time.Time
	AmountOre       int64
	KID             string
	ExternalRef     string
}

// AmountKroner returns the amount in major units.
func (t Transaction) AmountKroner() decimal.Decimal {
	return domain.OreToKroner(t.AmountOre)
}

// PaymentMethod maps the transaction code to the payment channel.
func (t Transaction) PaymentMethod() string {
	switch t.TransactionCode {
	case 15, 20, 21:
		return domain.MethodAvtaleGiro
	default:
		return domain.MethodBank
	}
}

// Parse splits the file on line breaks and decodes every payment
// transaction record. Non-matching lines are skipped; a matched record
// with an unparseable required field yields a FormatError.
func Parse(data []byte) ([]Transaction, error) {
	var txs []Transaction
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		lineNo := i + 1

		if len(line) < RecordLen || !strings.HasPrefix(line, "NY") {
			continue
		}
		svc, txCode, rec, ok := recordSignature(line)
		if !ok || svc != serviceCodeOCR || rec != recordTypePayment {
			continue
		}

		tx := Transaction{
			ServiceCode:     svc,
			TransactionCode: txCode,
			RecordType:      rec,
			Number:          line[numStart:numEnd],
			ExternalRef:     strings.TrimSpace(line[refStart:refEnd]),
		}

		date, err := parseDate(line[dateStart:dateEnd])
		if err != nil {
			return nil, &FormatError{Line: lineNo, Field: "date", Err: err}
		}
		tx.Date = date

		amount, err := strconv.ParseInt(line[amountStart:amountEnd], 10, 64)
		if err != nil {
			return nil, &FormatError{Line: lineNo, Field: "amount", Err: err}
		}
		tx.AmountOre = amount

		kidField := strings.TrimSpace(line[kidStart:kidEnd])
		if kidField == "" || !allDigits(kidField) {
			return nil, &FormatError{Line: lineNo, Field: "kid", Err: fmt.Errorf("not a numeric field: %q", kidField)}
		}
		tx.KID = kidField

		txs = append(txs, tx)
	}
	return txs, nil
}

func recordSignature(line string) (svc, txCode, rec int, ok bool) {
	var err error
	if svc, err = strconv.Atoi(line[svcStart:svcEnd]); err != nil {
		return 0, 0, 0, false
	}
	if txCode, err = strconv.Atoi(line[txCodeStart:txCodeEnd]); err != nil {
		return 0, 0, 0, false
	}
	if rec, err = strconv.Atoi(line[recStart:recEnd]); err != nil {
		return 0, 0, 0, false
	}
	return svc, txCode, rec, true
}

// parseDate decodes a DDMMYY field, prefixing the century digits.
func parseDate(field string) (time.Time, error) {
	day, err := strconv.Atoi(field[0:2])
	if err != nil {
		return time.Time{}, err
	}
	month, err := strconv.Atoi(field[2:4])
	if err != nil {
		return time.Time{}, err
	}
	year, err := strconv.Atoi(field[4:6])
	if err != nil {
		return time.Time{}, err
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("out of range date %q", field)
	}
	return time.Date(centuryPrefix*100+year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
