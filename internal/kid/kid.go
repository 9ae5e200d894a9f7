// Package kid implements the checksummed identifier scheme used to
// correlate bank transactions with donors and distributions. A KID is a
// numeric string of 7-25 digits whose last digit is a Luhn (mod10) check
// digit over the preceding digits.
package kid

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
)

const (
	MinLength = 7
	MaxLength = 25

	// maxGenerateAttempts bounds collision retries during generation.
	maxGenerateAttempts = 10
)

// ErrExhausted is returned when generation keeps colliding with existing
// identifiers and the retry budget runs out.
var ErrExhausted = fmt.Errorf("kid: generation attempts exhausted after %d collisions", maxGenerateAttempts)

// Checksum computes the Luhn checksum of a digit string. It walks the
// digits right to left, doubling every second digit starting from the
// one left of the check-digit position, and returns the digit sum mod 10.
// The result is 0 iff the string is Luhn-valid.
func Checksum(digits string) (int, error) {
	parity := len(digits) % 2
	sum := 0
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("kid: non-digit character %q at position %d", c, i)
		}
		d := int(c - '0')
		if i%2 == parity {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum % 10, nil
}

// Calculate returns the check digit that makes partial+digit Luhn-valid.
func Calculate(partial string) (int, error) {
	sum, err := Checksum(partial + "0")
	if err != nil {
		return 0, err
	}
	if sum == 0 {
		return 0, nil
	}
	return 10 - sum, nil
}

// Valid reports whether the digit string passes the Luhn check.
func Valid(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	sum, err := Checksum(digits)
	return err == nil && sum == 0
}

// ExistsFunc answers whether a candidate identifier is already taken.
type ExistsFunc func(ctx context.Context, kid string) (bool, error)

// Generate produces a new identifier of exactly length digits: length-1
// random digits in [1,9] followed by the Luhn check digit. Candidates
// colliding with an existing identifier are retried up to a fixed bound.
func Generate(ctx context.Context, length int, exists ExistsFunc) (string, error) {
	if length < MinLength || length > MaxLength {
		return "", fmt.Errorf("kid: length %d outside [%d,%d]", length, MinLength, MaxLength)
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		var b strings.Builder
		b.Grow(length)
		for i := 0; i < length-1; i++ {
			b.WriteByte(byte('1' + rand.Intn(9)))
		}
		check, err := Calculate(b.String())
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + check))
		candidate := b.String()

		if exists == nil {
			return candidate, nil
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("kid: uniqueness lookup: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrExhausted
}

// Extract scans free text for the first run of 8 consecutive digits whose
// final digit is the Luhn check digit of the preceding 7. Checksum
// validity is the sole acceptance criterion; digit runs that merely look
// like an identifier are rejected.
func Extract(text string) (string, bool) {
	for i := 0; i+8 <= len(text); i++ {
		if !isDigit(text[i]) {
			continue
		}
		// Candidate must start at i and have at least 8 digits.
		j := i
		for j < len(text) && isDigit(text[j]) {
			j++
		}
		for k := i; k+8 <= j; k++ {
			candidate := text[k : k+8]
			if Valid(candidate) {
				return candidate, true
			}
		}
		i = j
	}
	return "", false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
