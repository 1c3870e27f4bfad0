package revolut

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/revoledger/src/models"
)

const statement = `Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance
EXCHANGE,Current,2021-02-03 10:11:12,2021-02-03 10:11:12,Exchanged to BTC,-1000.00,0.00,EUR,COMPLETED,250.00
EXCHANGE,Current,2021-02-03 10:11:12,2021-02-03 10:11:12,Exchanged from EUR,0.03,0.0001,btc,COMPLETED,0.03

CRYPTO_WITHDRAWAL,Current,2021-03-01 08:00:00,2021-03-01 08:05:00,Sent BTC,-0.01,0.0005,BTC,COMPLETED,
`

func TestParseStatement(t *testing.T) {
	rows, err := NewParser().Parse(strings.NewReader(statement))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	eur := rows[0]
	assert.Equal(t, models.RowTypeExchange, eur.Type)
	assert.Equal(t, "EUR", eur.Currency)
	assert.True(t, eur.Amount.Equal(decimalOf(t, "-1000")))
	assert.True(t, eur.Balance.Equal(decimalOf(t, "250")))
	assert.False(t, eur.FiatAmount.Valid)

	btc := rows[1]
	assert.Equal(t, "BTC", btc.Currency)
	assert.True(t, btc.Fee.Equal(decimalOf(t, "0.0001")))
	assert.True(t, strings.HasPrefix(btc.Key, "2021_02_03_10_11_12_"))
	assert.Len(t, btc.Key, len("2021_02_03_10_11_12_")+64)
	assert.NotEqual(t, eur.Key, btc.Key)

	w := rows[2]
	assert.Equal(t, models.RowTypeWithdrawal, w.Type)
	assert.True(t, w.Balance.IsZero())
}

func TestParseStatementOptionalColumns(t *testing.T) {
	content := "Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance,Base currency,Fiat amount\n" +
		"CRYPTO_WITHDRAWAL,Current,2023-01-01 00:00:00,2023-01-01 00:00:00,Sent,-0.5,1.5,ETH,COMPLETED,1,eur,-600.10\n"

	rows, err := NewParser().Parse(strings.NewReader(content))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "EUR", rows[0].BaseCurrency)
	require.True(t, rows[0].FiatAmount.Valid)
	assert.Equal(t, "-600.1", rows[0].FiatAmount.Decimal.String())
}

func TestRowKeyIgnoresAmount(t *testing.T) {
	a := "Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance\n" +
		"EXCHANGE,Current,2021-02-03 10:11:12,2021-02-03 10:11:13,x,-1000.00,0,EUR,COMPLETED,250\n"
	b := strings.Replace(a, "-1000.00", "-1000", 1)

	rowsA, err := NewParser().Parse(strings.NewReader(a))
	require.NoError(t, err)
	rowsB, err := NewParser().Parse(strings.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, rowsA[0].Key, rowsB[0].Key)
	assert.Equal(t, RowKey("EXCHANGE", "EUR", "2021-02-03 10:11:12", "2021-02-03 10:11:13", "250"), rowsA[0].Key)
}

func TestParseStatementErrors(t *testing.T) {
	_, err := NewParser().Parse(strings.NewReader("Type,Amount,Currency\nEXCHANGE,1,BTC\n"))
	assert.ErrorIs(t, err, ErrMissingColumn)

	header := "Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance\n"
	tests := map[string]string{
		"bad amount":  "EXCHANGE,Current,2021-02-03 10:11:12,2021-02-03 10:11:12,x,abc,0,EUR,COMPLETED,1\n",
		"bad date":    "EXCHANGE,Current,03/02/2021,2021-02-03 10:11:12,x,1,0,EUR,COMPLETED,1\n",
		"no currency": "EXCHANGE,Current,2021-02-03 10:11:12,2021-02-03 10:11:12,x,1,0,,COMPLETED,1\n",
		"bad fee":     "EXCHANGE,Current,2021-02-03 10:11:12,2021-02-03 10:11:12,x,1,?,EUR,COMPLETED,1\n",
	}
	for name, line := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewParser().Parse(strings.NewReader(header + line))
			assert.ErrorIs(t, err, ErrUnrecognizedRow)
		})
	}
}
