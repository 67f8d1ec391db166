package numeric

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParsePositiveDecimal(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    string
		wantErr bool
	}{
		{"string", "12.345", "12.345", false},
		{"padded string", " 0.1 ", "0.1", false},
		{"int", 7, "7", false},
		{"int64", int64(3), "3", false},
		{"float", 0.25, "0.25", false},
		{"decimal", dec("1.5"), "1.5", false},
		{"zero", "0", "0", false},
		{"negative", "-0.0001", "", true},
		{"garbage", "abc", "", true},
		{"unsupported", true, "", true},
		{"nan", math.NaN(), "", true},
		{"positive infinity", math.Inf(1), "", true},
		{"negative infinity", math.Inf(-1), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePositiveDecimal(tt.value, "price")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "price", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

type color string

func TestParseEnum(t *testing.T) {
	got, err := ParseEnum[color]("  red ", "color", "RED", "BLUE")
	require.NoError(t, err)
	assert.Equal(t, color("RED"), got)

	_, err = ParseEnum[color]("green", "color", "RED", "BLUE")
	require.ErrorIs(t, err, ErrValidation)
}

func TestQuantizeFloor(t *testing.T) {
	tests := []struct {
		value, tick, want string
	}{
		{"100.129", "0.01", "100.12"},
		{"100.12", "0.01", "100.12"},
		{"0.999999", "0.001", "0.999"},
		{"17", "5", "15"},
		{"-1.5", "1", "-2"},
		{"3.14159", "0", "3.14159"},
	}

	for _, tt := range tests {
		got := QuantizeFloor(dec(tt.value), dec(tt.tick))
		assert.True(t, got.Equal(dec(tt.want)), "QuantizeFloor(%s, %s) = %s, want %s", tt.value, tt.tick, got, tt.want)
	}
}

func TestQuantizeFloorIdempotent(t *testing.T) {
	ticks := []string{"0.01", "0.00000001", "0.5", "1", "25"}
	values := []string{"0", "0.00000123", "99.999", "12345.6789", "1e-9", "250.4"}

	for _, tick := range ticks {
		for _, v := range values {
			once := QuantizeFloor(dec(v), dec(tick))
			twice := QuantizeFloor(once, dec(tick))
			assert.True(t, once.Equal(twice), "tick %s value %s: %s != %s", tick, v, once, twice)
			assert.True(t, once.LessThanOrEqual(dec(v)))
		}
	}
}

func TestReduce(t *testing.T) {
	assert.Equal(t, "99.5", Reduce(dec("99.5")).String())
	assert.Equal(t, "123456.78", Reduce(dec("123456.789")).String())
	assert.Equal(t, "0.33333333", Reduce(dec("0.333333333333")).String())
	assert.Equal(t, "0.00012345678", Reduce(dec("0.000123456789")).String())
	assert.Equal(t, "0", Reduce(decimal.Zero).String())
}

func TestDivFloorsToPrecision(t *testing.T) {
	assert.Equal(t, "0.66666666", Div(dec("2"), dec("3")).String())
	assert.Equal(t, "0.75", Div(dec("15"), dec("20")).String())
}

func TestMeanAndMedian(t *testing.T) {
	_, ok := Mean(nil)
	assert.False(t, ok)
	_, ok = Median(nil)
	assert.False(t, ok)

	m, ok := Mean([]decimal.Decimal{dec("1"), dec("2"), dec("4")})
	require.True(t, ok)
	assert.Equal(t, "2.3333333", m.String())

	med, ok := Median([]decimal.Decimal{dec("0.9"), dec("0.1"), dec("0.4")})
	require.True(t, ok)
	assert.Equal(t, "0.4", med.String())

	in := []decimal.Decimal{dec("0.6"), dec("0.2"), dec("0.4"), dec("0.8")}
	med, ok = Median(in)
	require.True(t, ok)
	assert.Equal(t, "0.5", med.String())
	assert.Equal(t, "0.6", in[0].String(), "median must not reorder its input")
}

func TestIsEqual(t *testing.T) {
	assert.True(t, IsEqual(dec("100.00000001"), dec("100")))
	assert.True(t, IsEqual(dec("99.5"), dec("99.50")))
	assert.False(t, IsEqual(dec("100.000001"), dec("100")))
}
