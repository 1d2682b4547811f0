package slugcam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabel(t *testing.T) {
	assert.Equal(t, "no_slug", LabelNegative.String())
	assert.Equal(t, "slug", LabelPositive.String())
	assert.Equal(t, "no_slug", Label(42).String())

	assert.False(t, LabelNegative.Positive())
	assert.True(t, LabelPositive.Positive())
}

func TestDirection(t *testing.T) {
	tests := []struct {
		name     string
		in       Direction
		reversed Direction
		sign     int32
		str      string
	}{
		{"Right", DirectionRight, DirectionLeft, +1, "Right"},
		{"Left", DirectionLeft, DirectionRight, -1, "Left"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.reversed, tt.in.Reverse())
			assert.Equal(t, tt.in, tt.in.Reverse().Reverse())
			assert.Equal(t, tt.sign, tt.in.Sign())
			assert.Equal(t, tt.str, tt.in.String())
		})
	}
}
