package autogiro

import (
	"bytes"
	"fmt"
	"time"
)

// EncodeOpening emits the file header record.
func EncodeOpening(o Opening) (string, error) {
	if len(o.CustomerNo) != customerLen {
		return "", fmt.Errorf("autogiro: customer number %q must be %d digits", o.CustomerNo, customerLen)
	}
	if len(o.BankgiroNo) > bankgiroLen {
		return "", fmt.Errorf("autogiro: bankgiro number %q exceeds %d digits", o.BankgiroNo, bankgiroLen)
	}
	head := fmt.Sprintf("%s%s%-8s%26s%s%0*s",
		codeOpening, formatDate(o.Date), "AUTOGIRO", "", o.CustomerNo, bankgiroLen, o.BankgiroNo)
	return pad(head), nil
}

// EncodeWithdrawal emits one withdrawal claim line for a due charge.
func EncodeWithdrawal(dueDate time.Time, payerNo string, amountOre int64, reference string) (string, error) {
	return paymentLine(codeIncomingPayment, dueDate, payerNo, amountOre, reference)
}

// EncodeRefund emits one outgoing payment line.
func EncodeRefund(date time.Time, payerNo string, amountOre int64, reference string) (string, error) {
	return paymentLine(codeOutgoingPayment, date, payerNo, amountOre, reference)
}

// EncodeMandateConfirmation emits a confirmation line for a new mandate.
func EncodeMandateConfirmation(bankgiroNo, payerNo string, date time.Time) (string, error) {
	if err := validPayerNo(payerNo); err != nil {
		return "", err
	}
	head := fmt.Sprintf("%s%0*s%0*s%s%s",
		codeMandateAdvice, bankgiroLen, bankgiroNo, payerNoLen, payerNo, AdviceConfirm, formatDate(date))
	return pad(head), nil
}

// EncodeCancellation emits one cancellation line for a pending charge.
func EncodeCancellation(dueDate time.Time, payerNo string, amountOre int64, reference string) (string, error) {
	return paymentLine(codeMandateCancel, dueDate, payerNo, amountOre, reference)
}

func paymentLine(code string, date time.Time, payerNo string, amountOre int64, reference string) (string, error) {
	if err := validPayerNo(payerNo); err != nil {
		return "", err
	}
	if amountOre <= 0 {
		return "", fmt.Errorf("autogiro: amount %d must be positive", amountOre)
	}
	if len(reference) > referenceLen {
		return "", fmt.Errorf("autogiro: reference %q exceeds %d characters", reference, referenceLen)
	}
	head := fmt.Sprintf("%s%s%4s%0*s%0*d%-*s",
		code, formatDate(date), "", payerNoLen, payerNo, amountLen, amountOre, referenceLen, reference)
	return pad(head), nil
}

// EncodeFile assembles a complete outbound file: the opening record
// followed by the given operation lines, CRLF terminated.
func EncodeFile(opening Opening, lines []string) ([]byte, error) {
	header, err := EncodeOpening(opening)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.WriteString("\r\n")
	for _, line := range lines {
		if len(line) != RecordLen {
			return nil, fmt.Errorf("autogiro: record %q is %d characters, want %d", line, len(line), RecordLen)
		}
		buf.WriteString(line)
		buf.WriteString("\r\n")
	}
	return buf.Bytes(), nil
}

// pad right-fills a record with '0' to the declared width.
func pad(head string) string {
	b := []byte(head)
	for len(b) < RecordLen {
		b = append(b, '0')
	}
	return string(b)
}
