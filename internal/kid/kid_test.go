package kid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumRange(t *testing.T) {
	inputs := []string{"0", "7", "1234567", "002556289731589", "9999999999999999999999999"}
	for _, in := range inputs {
		sum, err := Checksum(in)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, sum, 0, in)
		assert.LessOrEqual(t, sum, 9, in)
	}
}

func TestChecksumRejectsNonDigits(t *testing.T) {
	_, err := Checksum("12a45")
	require.Error(t, err)
}

func TestCalculateProducesValidIdentifier(t *testing.T) {
	partials := []string{"1234567", "9876543", "1111111", "00255628973158", "5"}
	for _, partial := range partials {
		check, err := Calculate(partial)
		require.NoError(t, err)

		full := partial + strconv.Itoa(check)
		sum, err := Checksum(full)
		require.NoError(t, err)
		assert.Equal(t, 0, sum, full)
		assert.True(t, Valid(full))
	}
}

func TestKnownIdentifier(t *testing.T) {
	// Production identifier observed in reconciliation files.
	const known = "002556289731589"

	check, err := Calculate(known[:len(known)-1])
	require.NoError(t, err)
	assert.Equal(t, 9, check)
	assert.True(t, Valid(known))
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	for _, length := range []int{7, 11, 15, 25} {
		generated, err := Generate(ctx, length, nil)
		require.NoError(t, err)
		assert.Len(t, generated, length)
		assert.True(t, Valid(generated))

		check, err := Calculate(generated[:length-1])
		require.NoError(t, err)
		assert.Equal(t, string(rune('0'+check)), generated[length-1:])

		// No zero digits before the check digit.
		for i := 0; i < length-1; i++ {
			assert.NotEqual(t, byte('0'), generated[i])
		}
	}
}

func TestGenerateRejectsBadLength(t *testing.T) {
	_, err := Generate(context.Background(), 6, nil)
	require.Error(t, err)
	_, err = Generate(context.Background(), 26, nil)
	require.Error(t, err)
}

func TestGenerateBoundedRetries(t *testing.T) {
	calls := 0
	allTaken := func(ctx context.Context, kid string) (bool, error) {
		calls++
		return true, nil
	}

	_, err := Generate(context.Background(), 8, allTaken)
	require.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 10, calls)
}

func TestGenerateLookupFailure(t *testing.T) {
	lookupErr := errors.New("store unavailable")
	_, err := Generate(context.Background(), 8, func(ctx context.Context, kid string) (bool, error) {
		return false, lookupErr
	})
	require.ErrorIs(t, err, lookupErr)
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare identifier", "12345674", "12345674", true},
		{"embedded in message", "Gave til konto, KID 98765431 takk", "98765431", true},
		{"longer digit run with valid window", "ref 756696301 slutt", "75669630", true},
		{"invalid checksum rejected", "betaling 12345678", "", false},
		{"short digit run", "1234567", "", false},
		{"no digits", "ingen referanse her", "", false},
		{"empty", "", "", false},
		{"picks first valid run", "12345678 so 11111119", "11111119", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractNeverAcceptsInvalidRun(t *testing.T) {
	for i := 0; i < 50; i++ {
		text := fmt.Sprintf("betalt %08d", i*37)
		got, ok := Extract(text)
		if ok {
			assert.True(t, Valid(got))
		}
	}
}
