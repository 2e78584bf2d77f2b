package format

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	assert.Equal(t, "0 m", Distance(0))
	assert.Equal(t, "850 m", Distance(850))
	assert.Equal(t, "999 m", Distance(999.4))
	assert.Equal(t, "1.0 km", Distance(1000))
	assert.Equal(t, "2.4 km", Distance(2437))
	assert.Equal(t, "0 m", Distance(-12))
}

func TestCountdown(t *testing.T) {
	assert.Equal(t, "00:00", Countdown(0))
	assert.Equal(t, "00:00", Countdown(-5*time.Second))
	assert.Equal(t, "00:01", Countdown(300*time.Millisecond)) // ceiling
	assert.Equal(t, "02:00", Countdown(2*time.Minute))
	assert.Equal(t, "07:00", Countdown(420*time.Second))
	assert.Equal(t, "01:59", Countdown(119*time.Second))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "•••••••89", MaskPhone("987654389"))
	assert.Equal(t, "+•• ••••• •••45", MaskPhone("+91 98765 43245"))
	// too short to mask meaningfully
	assert.Equal(t, "89", MaskPhone("89"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "1500.00 INR", Money(1500, "INR"))
	assert.Equal(t, "12.50", Money(12.5, ""))
}

func TestParseOfferInput(t *testing.T) {
	amt, err := ParseOfferInput("1500")
	assert.NoError(t, err)
	if assert.NotNil(t, amt) {
		assert.Equal(t, 1500.00, *amt)
	}

	amt, err = ParseOfferInput("  12.345 ")
	assert.NoError(t, err)
	if assert.NotNil(t, amt) {
		assert.Equal(t, 12.35, *amt)
	}

	// clearing the offer
	amt, err = ParseOfferInput("")
	assert.NoError(t, err)
	assert.Nil(t, amt)
	amt, err = ParseOfferInput("   ")
	assert.NoError(t, err)
	assert.Nil(t, amt)

	for _, bad := range []string{"-5", "abc", "1e300x", "1000000.01", "NaN", "+Inf"} {
		_, err := ParseOfferInput(bad)
		if !errors.Is(err, ErrInvalidOffer) {
			t.Fatalf("ParseOfferInput(%q): expected ErrInvalidOffer, got %v", bad, err)
		}
	}

	// boundaries
	amt, err = ParseOfferInput("0")
	assert.NoError(t, err)
	if assert.NotNil(t, amt) {
		assert.Equal(t, 0.0, *amt)
	}
	amt, err = ParseOfferInput("1000000")
	assert.NoError(t, err)
	if assert.NotNil(t, amt) {
		assert.Equal(t, 1000000.0, *amt)
	}
}
