package avtalegiro

import (
	"bytes"
	"fmt"
)

// Encode produces a complete claim file: transmission start, one
// assignment block holding two records per claim, assignment end and
// transmission end with aggregate counts and sums. Encoding is strictly
// ordered; running totals are part of the wire contract.
func Encode(batch Batch) ([]byte, error) {
	if len(batch.Claims) == 0 {
		return nil, fmt.Errorf("avtalegiro: refusing to encode empty claim set")
	}
	if len(batch.SenderID) != 8 {
		return nil, fmt.Errorf("avtalegiro: sender id %q must be 8 digits", batch.SenderID)
	}
	if len(batch.AccountNo) != 11 {
		return nil, fmt.Errorf("avtalegiro: account number %q must be 11 digits", batch.AccountNo)
	}
	for _, c := range batch.Claims {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}

	totals := totalsOf(batch.Claims)

	var buf bytes.Buffer
	writeRecord(&buf, transmissionStart(batch))
	writeRecord(&buf, assignmentStart(batch))

	for i, c := range batch.Claims {
		txNo := i + 1
		writeRecord(&buf, claimAmountRecord(c, txNo))
		writeRecord(&buf, claimNameRecord(c, txNo))
	}

	// Record counts cover every line in the enclosing block.
	assignmentRecords := 2*len(batch.Claims) + 2
	transmissionRecords := assignmentRecords + 2

	writeRecord(&buf, assignmentEnd(totals, assignmentRecords))
	writeRecord(&buf, transmissionEnd(totals, transmissionRecords))

	return buf.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, head string) {
	buf.WriteString(head)
	for i := len(head); i < RecordLen; i++ {
		buf.WriteByte('0')
	}
	buf.WriteString("\r\n")
}

func transmissionStart(batch Batch) string {
	return fmt.Sprintf("NY%02d00%02d%8s%07d%8s",
		serviceTransmission, recordTransmissionStart, batch.SenderID, batch.Seq, batch.SenderID)
}

func assignmentStart(batch Batch) string {
	return fmt.Sprintf("NY%02d00%02d%07d%11s",
		serviceAvtaleGiro, recordAssignmentStart, batch.Seq, batch.AccountNo)
}

// claimAmountRecord is claim line 1: due date, zero-padded amount and the
// KID left-padded with spaces to 25 characters.
func claimAmountRecord(c Claim, txNo int) string {
	return fmt.Sprintf("NY%02d%02d%02d%07d%s%11s%017d%25s",
		serviceAvtaleGiro, c.txCode(), recordClaimAmount, txNo,
		formatDate(c.DueDate), "", c.AmountOre, c.KID)
}

// claimNameRecord is claim line 2: the payer's shortened display name.
func claimNameRecord(c Claim, txNo int) string {
	return fmt.Sprintf("NY%02d%02d%02d%07d%-10s",
		serviceAvtaleGiro, c.txCode(), recordClaimName, txNo, ShortName(c.DonorName))
}

func assignmentEnd(t Totals, records int) string {
	return fmt.Sprintf("NY%02d00%02d%08d%08d%017d%s%s",
		serviceAvtaleGiro, recordAssignmentEnd, t.Count, records, t.SumOre,
		formatDate(t.MinDue), formatDate(t.MaxDue))
}

func transmissionEnd(t Totals, records int) string {
	return fmt.Sprintf("NY%02d00%02d%08d%08d%017d%s",
		serviceTransmission, recordTransmissionEnd, t.Count, records, t.SumOre,
		formatDate(t.MinDue))
}
