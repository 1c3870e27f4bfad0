package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestFormatDate(t *testing.T) {
	d := date("2021-03-07")
	assert.Equal(t, "07/03/2021", FormatDate(d, DateFormatDDMMYYYY))
	assert.Equal(t, "03/07/2021", FormatDate(d, DateFormatMMDDYYYY))
	assert.Equal(t, "2021-03-07", FormatDate(d, DateFormatYYYYMMDD))
	assert.Equal(t, "2021-03-07", FormatDate(d, "unknown"))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("12/31/2021", DateFormatMMDDYYYY)
	require.NoError(t, err)
	assert.Equal(t, date("2021-12-31"), got)

	_, err = ParseDate("31/12/2021", DateFormatMMDDYYYY)
	assert.Error(t, err)
}

func TestFormatMultiDates(t *testing.T) {
	dates := []time.Time{date("2020-05-01"), date("2020-01-02"), date("2020-03-04")}
	sep := MultiDateOptions{Text: "VARIOUS", Separator: "|"}

	tests := []struct {
		format string
		want   string
	}{
		{MultiDatesStatic, "VARIOUS"},
		{MultiDatesAll, "2020-01-02|2020-03-04|2020-05-01"},
		{MultiDatesFirstLast, "2020-01-02|2020-05-01"},
		{MultiDatesFirst, "2020-01-02"},
		{MultiDatesLast, "2020-05-01"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			opts := sep
			opts.Format = tt.format
			assert.Equal(t, tt.want, FormatMultiDates(dates, DateFormatYYYYMMDD, opts))
		})
	}

	assert.Equal(t, "", FormatMultiDates(nil, DateFormatYYYYMMDD, sep))
	single := MultiDateOptions{Format: MultiDatesStatic, Text: "VARIOUS"}
	assert.Equal(t, "01/02/2020", FormatMultiDates(dates[1:2], DateFormatMMDDYYYY, single))
}

func TestFormatWithParenthesis(t *testing.T) {
	assert.Equal(t, "(12.35)", FormatWithParenthesis(decimal.RequireFromString("-12.345"), 2))
	assert.Equal(t, "7.00", FormatWithParenthesis(decimal.NewFromInt(7), 2))
}

func TestCleanDecimalString(t *testing.T) {
	assert.Equal(t, "0.051", CleanDecimalString(decimal.RequireFromString("0.05100000")))
	assert.Equal(t, "2", CleanDecimalString(decimal.RequireFromString("2.0000000000001")))
}

func TestParseFormNumber(t *testing.T) {
	tests := map[string]string{
		"(1,234.50)": "-1234.5",
		"$99.10":     "99.1",
		"":           "0",
		"-3":         "-3",
	}
	for in, want := range tests {
		got, err := ParseFormNumber(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s -> %s", in, got)
	}
}

func TestSendJSONWithETag(t *testing.T) {
	data := map[string]int{"pairs": 2}

	rec := httptest.NewRecorder()
	SendJSONWithETag(rec, httptest.NewRequest(http.MethodGet, "/api/pairs", nil), data)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/pairs", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	SendJSONWithETag(rec, req, data)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}

func TestSendJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	SendJSONError(rec, "boom", http.StatusConflict)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
}
