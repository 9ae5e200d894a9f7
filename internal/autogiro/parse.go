package autogiro

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatError reports a recognized record whose required field could not
// be parsed. It aborts the current file's parse.
type FormatError struct {
	Line  int
	Field string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("autogiro: line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// File is the decoded view of an inbound Swedish file.
type File struct {
	Opening   *Opening
	Payments  []Payment
	Mandates  []MandateAdvice
	EMandates []EMandate
	Rejected  []RejectedCharge
}

// Parse decodes a file by dispatching each line on its transaction code.
// Lines with unknown codes are skipped silently.
func Parse(data []byte) (*File, error) {
	file := &File{}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		lineNo := i + 1
		if len(line) < RecordLen {
			continue
		}

		var err error
		switch line[0:2] {
		case codeOpening:
			err = file.parseOpening(line, lineNo)
		case codeIncomingPayment:
			err = file.parsePayment(line, lineNo, false)
		case codeOutgoingPayment:
			err = file.parsePayment(line, lineNo, true)
		case codeMandateAdvice:
			err = file.parseMandateAdvice(line, lineNo)
		case codeEMandate:
			file.parseEMandate(line)
		case codeRejectedCharge:
			err = file.parseRejectedCharge(line, lineNo)
		}
		if err != nil {
			return nil, err
		}
	}
	return file, nil
}

func (f *File) parseOpening(line string, lineNo int) error {
	date, err := parseDate(line[2:10])
	if err != nil {
		return &FormatError{Line: lineNo, Field: "date", Err: err}
	}
	f.Opening = &Opening{
		Date:       date,
		CustomerNo: strings.TrimSpace(line[44:50]),
		BankgiroNo: strings.TrimLeft(line[50:60], "0"),
	}
	return nil
}

func (f *File) parsePayment(line string, lineNo int, outgoing bool) error {
	date, err := parseDate(line[2:10])
	if err != nil {
		return &FormatError{Line: lineNo, Field: "date", Err: err}
	}
	amount, err := strconv.ParseInt(line[30:42], 10, 64)
	if err != nil {
		return &FormatError{Line: lineNo, Field: "amount", Err: err}
	}
	f.Payments = append(f.Payments, Payment{
		Date:      date,
		PayerNo:   strings.TrimLeft(line[14:30], "0"),
		AmountOre: amount,
		Reference: strings.TrimRight(line[42:58], " "),
		Outgoing:  outgoing,
	})
	return nil
}

func (f *File) parseMandateAdvice(line string, lineNo int) error {
	info := line[28:30]
	switch info {
	case AdviceAdd, AdviceConfirm, AdviceCancelled:
	default:
		return &FormatError{Line: lineNo, Field: "info_code", Err: fmt.Errorf("unknown code %q", info)}
	}
	date, err := parseDate(line[30:38])
	if err != nil {
		return &FormatError{Line: lineNo, Field: "date", Err: err}
	}
	f.Mandates = append(f.Mandates, MandateAdvice{
		BankgiroNo: strings.TrimLeft(line[2:12], "0"),
		PayerNo:    strings.TrimLeft(line[12:28], "0"),
		InfoCode:   info,
		Date:       date,
	})
	return nil
}

func (f *File) parseEMandate(line string) {
	f.EMandates = append(f.EMandates, EMandate{
		BankgiroNo:   strings.TrimLeft(line[2:12], "0"),
		PayerNo:      strings.TrimLeft(line[12:28], "0"),
		PayerAccount: strings.TrimLeft(line[28:44], "0"),
		IDNumber:     strings.TrimSpace(line[44:56]),
	})
}

func (f *File) parseRejectedCharge(line string, lineNo int) error {
	date, err := parseDate(line[2:10])
	if err != nil {
		return &FormatError{Line: lineNo, Field: "date", Err: err}
	}
	amount, err := strconv.ParseInt(line[30:42], 10, 64)
	if err != nil {
		return &FormatError{Line: lineNo, Field: "amount", Err: err}
	}
	f.Rejected = append(f.Rejected, RejectedCharge{
		Date:       date,
		PayerNo:    strings.TrimLeft(line[14:30], "0"),
		AmountOre:  amount,
		Reference:  strings.TrimRight(line[42:58], " "),
		RejectCode: line[58:60],
	})
	return nil
}

func parseDate(field string) (time.Time, error) {
	t, err := time.Parse("20060102", field)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
