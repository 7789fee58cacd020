package expiry_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/pantrybot/internal/expiry"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "two digit day and month", raw: "18.07", want: time.Date(2025, 7, 18, 0, 0, 0, 0, time.UTC)},
		{name: "single digits", raw: "1.7", want: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)},
		{name: "surrounding whitespace", raw: "  05.12 ", want: time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)},
		{name: "impossible day", raw: "31.02", wantErr: true},
		{name: "day zero", raw: "00.05", wantErr: true},
		{name: "month thirteen", raw: "01.13", wantErr: true},
		{name: "negative day", raw: "-1.05", wantErr: true},
		{name: "full date", raw: "18.07.2025", wantErr: true},
		{name: "slash separator", raw: "18/07", wantErr: true},
		{name: "words", raw: "tomorrow", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "three digit day", raw: "018.07", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := expiry.Parse(tc.raw, 2025, time.UTC)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, expiry.ErrUnparseable))
				return
			}
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}
}

func TestParseLeapDay(t *testing.T) {
	t.Parallel()

	_, err := expiry.Parse("29.02", 2024, time.UTC)
	require.NoError(t, err)

	_, err = expiry.Parse("29.02", 2025, time.UTC)
	require.ErrorIs(t, err, expiry.ErrUnparseable)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	// Mid-afternoon so the time of day must not affect day comparisons.
	today := time.Date(2025, 7, 17, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		want expiry.Tier
	}{
		{raw: "01.01", want: expiry.Expired},
		{raw: "16.07", want: expiry.Expired},
		{raw: "17.07", want: expiry.Warning},
		{raw: "18.07", want: expiry.Warning},
		{raw: "20.07", want: expiry.Warning},
		{raw: "21.07", want: expiry.Fresh},
		{raw: "31.12", want: expiry.Fresh},
		{raw: "soon", want: expiry.Unparseable},
		{raw: "32.07", want: expiry.Unparseable},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			t.Parallel()

			tier, date, ok := expiry.Classify(tc.raw, today, 2025)
			assert.Equal(t, tc.want, tier)
			if tc.want == expiry.Unparseable {
				assert.False(t, ok)
				assert.True(t, date.IsZero())
			} else {
				assert.True(t, ok)
				assert.Equal(t, 2025, date.Year())
			}
		})
	}
}

func TestClassifyAcrossYearBoundary(t *testing.T) {
	t.Parallel()

	today := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)

	current := expiry.YearPolicy{}
	tier, _, _ := expiry.Classify("03.01", today, current.Year(today))
	assert.Equal(t, expiry.Warning, tier)

	fixed := expiry.YearPolicy{FixedYear: 2025}
	tier, _, _ = expiry.Classify("03.01", today, fixed.Year(today))
	assert.Equal(t, expiry.Expired, tier, "a fixed past year makes every item expired")
}

func TestTierString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "expired", expiry.Expired.String())
	assert.Equal(t, "warning", expiry.Warning.String())
	assert.Equal(t, "fresh", expiry.Fresh.String())
	assert.Equal(t, "unparseable", expiry.Unparseable.String())
	assert.Equal(t, "tier(42)", expiry.Tier(42).String())
}
