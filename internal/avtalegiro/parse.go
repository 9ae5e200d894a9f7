package avtalegiro

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatError reports a malformed record in a claim file.
type FormatError struct {
	Line  int
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("avtalegiro: line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ParsedFile is the decoded view of a claim file, used for round-trip
// checks against generated shipments and for receipt verification.
type ParsedFile struct {
	Claims          []Claim
	Declared        Totals
	DeclaredRecords int
}

// Verify checks the declared aggregates against the decoded claims.
func (f *ParsedFile) Verify() error {
	got := totalsOf(f.Claims)
	if got.Count != f.Declared.Count {
		return fmt.Errorf("avtalegiro: declared %d transactions, decoded %d", f.Declared.Count, got.Count)
	}
	if got.SumOre != f.Declared.SumOre {
		return fmt.Errorf("avtalegiro: declared sum %d, decoded %d", f.Declared.SumOre, got.SumOre)
	}
	if !got.MinDue.Equal(f.Declared.MinDue) {
		return fmt.Errorf("avtalegiro: declared min due %s, decoded %s",
			f.Declared.MinDue.Format("2006-01-02"), got.MinDue.Format("2006-01-02"))
	}
	if !f.Declared.MaxDue.IsZero() && !got.MaxDue.Equal(f.Declared.MaxDue) {
		return fmt.Errorf("avtalegiro: declared max due %s, decoded %s",
			f.Declared.MaxDue.Format("2006-01-02"), got.MaxDue.Format("2006-01-02"))
	}
	return nil
}

// Parse decodes a claim file. Unrecognized record types are skipped;
// malformed fields on recognized records abort the parse.
func Parse(data []byte) (*ParsedFile, error) {
	file := &ParsedFile{}
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
		if !ok {
			continue
		}

		switch {
		case svc == serviceAvtaleGiro && rec == recordClaimAmount:
			claim, err := parseClaimAmount(line, lineNo, txCode)
			if err != nil {
				return nil, err
			}
			file.Claims = append(file.Claims, claim)

		case svc == serviceAvtaleGiro && rec == recordClaimName:
			if len(file.Claims) == 0 {
				return nil, &FormatError{Line: lineNo, Field: "name", Err: fmt.Errorf("name record without preceding amount record")}
			}
			file.Claims[len(file.Claims)-1].DonorName = strings.TrimRight(line[15:25], " ")

		case svc == serviceAvtaleGiro && rec == recordAssignmentEnd:
			declared, err := parseAssignmentEnd(line, lineNo)
			if err != nil {
				return nil, err
			}
			file.Declared = declared

		case svc == serviceTransmission && rec == recordTransmissionEnd:
			records, err := strconv.Atoi(line[16:24])
			if err != nil {
				return nil, &FormatError{Line: lineNo, Field: "records", Err: err}
			}
			file.DeclaredRecords = records
		}
	}
	return file, nil
}

func recordSignature(line string) (svc, txCode, rec int, ok bool) {
	var err error
	if svc, err = strconv.Atoi(line[2:4]); err != nil {
		return 0, 0, 0, false
	}
	if txCode, err = strconv.Atoi(line[4:6]); err != nil {
		return 0, 0, 0, false
	}
	if rec, err = strconv.Atoi(line[6:8]); err != nil {
		return 0, 0, 0, false
	}
	return svc, txCode, rec, true
}

func parseClaimAmount(line string, lineNo, txCode int) (Claim, error) {
	due, err := parseDate(line[15:21])
	if err != nil {
		return Claim{}, &FormatError{Line: lineNo, Field: "due_date", Err: err}
	}
	amount, err := strconv.ParseInt(line[32:49], 10, 64)
	if err != nil {
		return Claim{}, &FormatError{Line: lineNo, Field: "amount", Err: err}
	}
	kidField := strings.TrimSpace(line[49:74])
	if kidField == "" {
		return Claim{}, &FormatError{Line: lineNo, Field: "kid", Err: fmt.Errorf("empty identifier field")}
	}
	return Claim{
		KID:       kidField,
		AmountOre: amount,
		DueDate:   due,
		Notice:    txCode == txCodeNotice,
	}, nil
}

func parseAssignmentEnd(line string, lineNo int) (Totals, error) {
	count, err := strconv.Atoi(line[8:16])
	if err != nil {
		return Totals{}, &FormatError{Line: lineNo, Field: "count", Err: err}
	}
	sum, err := strconv.ParseInt(line[24:41], 10, 64)
	if err != nil {
		return Totals{}, &FormatError{Line: lineNo, Field: "sum", Err: err}
	}
	minDue, err := parseDate(line[41:47])
	if err != nil {
		return Totals{}, &FormatError{Line: lineNo, Field: "min_due", Err: err}
	}
	maxDue, err := parseDate(line[47:53])
	if err != nil {
		return Totals{}, &FormatError{Line: lineNo, Field: "max_due", Err: err}
	}
	return Totals{Count: count, SumOre: sum, MinDue: minDue, MaxDue: maxDue}, nil
}

// parseDate decodes a DDMMYY field with the century digits prefixed.
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
	return time.Date(2000+year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}
