package jalali_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-shamsi/internal/jalali"
)

func TestResolveYear_Nowruz(t *testing.T) {
	tests := []struct {
		jy       int
		wantGY   int
		wantDay  int
		wantLeap bool
	}{
		{1357, 1978, 21, false},
		{1399, 2020, 20, true},
		{1402, 2023, 21, false},
		{1403, 2024, 20, true},
		{1404, 2025, 21, false},
	}

	for _, tt := range tests {
		info := jalali.ResolveYear(tt.jy)
		assert.Equal(t, tt.wantGY, info.GregorianYear, "year %d", tt.jy)
		assert.Equal(t, tt.wantDay, info.MarchDay, "year %d", tt.jy)
		assert.Equal(t, tt.wantLeap, info.IsLeap, "year %d", tt.jy)
	}
}

// TestIsLeap_PublishedList compares against the published leap years of the
// 33-year arithmetic around the present era.
func TestIsLeap_PublishedList(t *testing.T) {
	leaps := map[int]bool{
		1375: true, 1379: true, 1383: true, 1387: true, 1391: true,
		1395: true, 1399: true, 1403: true, 1408: true, 1412: true,
	}
	for jy := 1375; jy <= 1414; jy++ {
		assert.Equal(t, leaps[jy], jalali.IsLeap(jy), "year %d", jy)
	}
}

// TestIsLeap_AgreesWithYearSpan checks that the leap flag matches the actual
// distance between consecutive Nowruz days across the whole break table.
func TestIsLeap_AgreesWithYearSpan(t *testing.T) {
	for jy := jalali.MinYear; jy < jalali.MaxYear; jy++ {
		this, err := jalali.JalaliToJDN(jalali.Date{Year: jy, Month: 1, Day: 1})
		require.NoError(t, err)
		next, err := jalali.JalaliToJDN(jalali.Date{Year: jy + 1, Month: 1, Day: 1})
		require.NoError(t, err)

		if int(next-this) != jalali.YearLength(jy) {
			require.Failf(t, "year length mismatch", "year %d spans %d days, leap=%v", jy, next-this, jalali.IsLeap(jy))
		}
	}
}

func TestResolveYear_OutsideTableDoesNotPanic(t *testing.T) {
	for _, jy := range []int{-5000, -62, jalali.MaxYear + 1, 10000} {
		assert.NotPanics(t, func() { _ = jalali.ResolveYear(jy) })
		assert.False(t, jalali.InSupportedRange(jy))
	}
	assert.True(t, jalali.InSupportedRange(jalali.MinYear))
	assert.True(t, jalali.InSupportedRange(jalali.MaxYear))
}
