package autogiro

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestEncodeOpening(t *testing.T) {
	line, err := EncodeOpening(Opening{Date: date(2022, 3, 1), CustomerNo: "471117", BankgiroNo: "9912346"})
	require.NoError(t, err)
	assert.Len(t, line, RecordLen)
	assert.True(t, strings.HasPrefix(line, "0120220301AUTOGIRO"))
	assert.Equal(t, "471117", line[44:50])
	assert.Equal(t, "0009912346", line[50:60])
}

func TestEncodeWithdrawal(t *testing.T) {
	line, err := EncodeWithdrawal(date(2022, 3, 28), "98765431", 25000, "CHG-001")
	require.NoError(t, err)
	assert.Len(t, line, RecordLen)
	assert.Equal(t, "82", line[0:2])
	assert.Equal(t, "20220328", line[2:10])
	assert.Equal(t, "0000000098765431", line[14:30])
	assert.Equal(t, "000000025000", line[30:42])
	assert.Equal(t, "CHG-001         ", line[42:58])
}

func TestEncodeValidation(t *testing.T) {
	_, err := EncodeWithdrawal(date(2022, 3, 28), "not-digits", 25000, "r")
	require.Error(t, err)

	_, err = EncodeWithdrawal(date(2022, 3, 28), "98765431", 0, "r")
	require.Error(t, err)

	_, err = EncodeWithdrawal(date(2022, 3, 28), "98765431", 100, strings.Repeat("x", 17))
	require.Error(t, err)

	_, err = EncodeOpening(Opening{Date: date(2022, 3, 1), CustomerNo: "12", BankgiroNo: "1"})
	require.Error(t, err)
}

func TestEncodeFileAndParseRoundTrip(t *testing.T) {
	withdrawal, err := EncodeWithdrawal(date(2022, 3, 28), "98765431", 25000, "CHG-001")
	require.NoError(t, err)
	refund, err := EncodeRefund(date(2022, 3, 29), "12345674", 9900, "REF-002")
	require.NoError(t, err)
	confirm, err := EncodeMandateConfirmation("9912346", "98765431", date(2022, 3, 1))
	require.NoError(t, err)
	cancel, err := EncodeCancellation(date(2022, 3, 28), "98765431", 25000, "CHG-001")
	require.NoError(t, err)

	opening := Opening{Date: date(2022, 3, 1), CustomerNo: "471117", BankgiroNo: "9912346"}
	out, err := EncodeFile(opening, []string{withdrawal, refund, confirm, cancel})
	require.NoError(t, err)

	file, err := Parse(out)
	require.NoError(t, err)

	require.NotNil(t, file.Opening)
	assert.Equal(t, date(2022, 3, 1), file.Opening.Date)
	assert.Equal(t, "471117", file.Opening.CustomerNo)
	assert.Equal(t, "9912346", file.Opening.BankgiroNo)

	require.Len(t, file.Payments, 2)
	assert.Equal(t, "98765431", file.Payments[0].PayerNo)
	assert.Equal(t, int64(25000), file.Payments[0].AmountOre)
	assert.Equal(t, "CHG-001", file.Payments[0].Reference)
	assert.False(t, file.Payments[0].Outgoing)
	assert.True(t, file.Payments[1].Outgoing)
	assert.Equal(t, "REF-002", file.Payments[1].Reference)

	require.Len(t, file.Mandates, 1)
	assert.Equal(t, AdviceConfirm, file.Mandates[0].InfoCode)
	assert.Equal(t, "98765431", file.Mandates[0].PayerNo)

	// Cancellation records are outbound-only and skipped on decode.
	assert.Empty(t, file.Rejected)
}

func TestParseMandateAndEMandateRecords(t *testing.T) {
	added := "73" + "0009912346" + "0000000012345674" + AdviceAdd + "20220301"
	added += strings.Repeat("0", RecordLen-len(added))

	cancelled := "73" + "0009912346" + "0000000012345674" + AdviceCancelled + "20220315"
	cancelled += strings.Repeat("0", RecordLen-len(cancelled))

	emandate := "65" + "0009912346" + "0000000012345674" + "0000123456789012" + "198001015577"
	emandate += strings.Repeat("0", RecordLen-len(emandate))

	file, err := Parse([]byte(added + "\r\n" + cancelled + "\r\n" + emandate + "\r\n"))
	require.NoError(t, err)

	require.Len(t, file.Mandates, 2)
	assert.Equal(t, AdviceAdd, file.Mandates[0].InfoCode)
	assert.Equal(t, date(2022, 3, 1), file.Mandates[0].Date)
	assert.Equal(t, AdviceCancelled, file.Mandates[1].InfoCode)

	require.Len(t, file.EMandates, 1)
	assert.Equal(t, "12345674", file.EMandates[0].PayerNo)
	assert.Equal(t, "123456789012", file.EMandates[0].PayerAccount)
	assert.Equal(t, "198001015577", file.EMandates[0].IDNumber)
}

func TestParseRejectedCharge(t *testing.T) {
	line := "80" + "20220328" + "    " + "0000000098765431" + "000000025000" + "CHG-001         " + "02"
	line += strings.Repeat("0", RecordLen-len(line))

	file, err := Parse([]byte(line))
	require.NoError(t, err)
	require.Len(t, file.Rejected, 1)
	assert.Equal(t, "98765431", file.Rejected[0].PayerNo)
	assert.Equal(t, int64(25000), file.Rejected[0].AmountOre)
	assert.Equal(t, "02", file.Rejected[0].RejectCode)
}

func TestParseSkipsUnknownAndShortLines(t *testing.T) {
	junk := "99" + strings.Repeat("1", 78)
	file, err := Parse([]byte(junk + "\r\nshort line\r\n\r\n"))
	require.NoError(t, err)
	assert.Nil(t, file.Opening)
	assert.Empty(t, file.Payments)
}

func TestParseFormatError(t *testing.T) {
	bad := "82" + "2022XX28" + "    " + "0000000098765431" + "000000025000" + strings.Repeat(" ", 16)
	bad += strings.Repeat("0", RecordLen-len(bad))

	_, err := Parse([]byte(bad))
	require.Error(t, err)
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "date", ferr.Field)
}
