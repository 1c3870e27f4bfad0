package external

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/revoledger/src/security/validation"
)

func TestParseExternalRecords(t *testing.T) {
	content := "Checkbox, A ,B,C,D,E,F,G,H\n" +
		"c,100 sh. XYZ,01/05/2020,03/04/2021,\"$1,200.00\",(50),W,10,\"1,160.00\"\n" +
		"\n" +
		"d,Gold coin,VARIOUS,12/31/2022,300,400,,,(100.5)\n"

	rows, err := NewParser().Parse(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "C", first.Checkbox)
	assert.Equal(t, "100 sh. XYZ", first.A)
	assert.Equal(t, 2021, first.Year)
	assert.Equal(t, "1200.00", first.D)
	assert.Equal(t, "-50.00", first.E)
	assert.Equal(t, "W", first.F)
	assert.Equal(t, "10.00", first.G)
	assert.Equal(t, "1160.00", first.H)
	assert.True(t, first.External)
	assert.True(t, first.SoldDate.Equal(time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)))

	second := rows[1]
	assert.Equal(t, "D", second.Checkbox)
	assert.Equal(t, 2022, second.Year)
	assert.Equal(t, "", second.G)
	assert.Equal(t, "-100.50", second.H)

	assert.Equal(t, map[int]int{2021: 1, 2022: 1}, CountPerYear(rows))
}

func TestParseExternalRecordsErrors(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader("a,b,d\nx,y,1\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = NewParser().Parse(strings.NewReader("checkbox,c\nA,sometime\n"))
	assert.ErrorIs(t, err, ErrUnrecognizedRow)

	_, err = NewParser().Parse(strings.NewReader("checkbox,c,d\nA,01/01/2021,1.2.3\n"))
	assert.ErrorIs(t, err, ErrUnrecognizedRow)

	_, err = NewParser().Parse(strings.NewReader("checkbox,c\nZ,01/01/2021\n"))
	assert.ErrorIs(t, err, validation.ErrValidationFailed)
}
