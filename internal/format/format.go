// Package format holds the display helpers for task fields: distances,
// countdowns, phone masking, money, and offer input parsing. No state.
package format

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// MaxOfferAmount bounds what a requester may attach to a task.
const MaxOfferAmount = 1_000_000

var ErrInvalidOffer = errors.New("invalid offer amount")

// Distance renders metres below 1 km and one-decimal kilometres above.
func Distance(meters float64) string {
	if meters < 0 {
		meters = 0
	}
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// Countdown renders a non-negative duration as zero-padded MM:SS. Partial
// seconds round up so the display never shows 00:00 while time remains.
func Countdown(remaining time.Duration) string {
	if remaining < 0 {
		remaining = 0
	}
	secs := int64(math.Ceil(remaining.Seconds()))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// MaskPhone hides every digit but the last two. Non-digit runes (spaces,
// dashes, a leading +) pass through so the shape of the number is kept.
func MaskPhone(s string) string {
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits <= 2 {
		return s
	}
	var b strings.Builder
	seen := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			seen++
			if seen <= digits-2 {
				b.WriteRune('•')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Money renders an amount with its currency code, two decimals.
func Money(amount float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// ParseOfferInput validates raw offer text from the requester. An empty or
// whitespace-only string clears the offer (nil amount, no error). Valid
// amounts are 0..MaxOfferAmount, rounded to two decimals. Everything else is
// rejected with ErrInvalidOffer before any network call happens.
func ParseOfferInput(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOffer, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOffer, s)
	}
	if v < 0 || v > MaxOfferAmount {
		return nil, fmt.Errorf("%w: %v out of range", ErrInvalidOffer, v)
	}
	rounded := math.Round(v*100) / 100
	return &rounded, nil
}
