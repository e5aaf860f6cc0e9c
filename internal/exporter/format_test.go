package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "13.40", formatFloat(13.4))
	assert.Equal(t, "0.00", formatFloat(0))
	assert.Equal(t, "99.99", formatFloat(99.994))
	assert.Equal(t, "-5.25", formatFloat(-5.25))
}

func TestFormatFloat1(t *testing.T) {
	assert.Equal(t, "33.3", formatFloat1(33.333))
	assert.Equal(t, "100.0", formatFloat1(100))
}

func TestFormatOptFloat(t *testing.T) {
	assert.Equal(t, "", formatOptFloat(nil))

	v := 42.5
	assert.Equal(t, "42.50", formatOptFloat(&v))
	assert.Equal(t, "42.5", formatOptFloat1(&v))

	zero := 0.0
	// An observed zero is not a missing value.
	assert.Equal(t, "0.00", formatOptFloat(&zero))
}

func TestFormatOptPct(t *testing.T) {
	assert.Equal(t, "", formatOptPct(nil))

	rate := 0.75
	assert.Equal(t, "75.00", formatOptPct(&rate))
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "1234", formatInt(1234))
}
