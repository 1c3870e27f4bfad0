package processors

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/revoledger/src/logger"
	"gopkg.in/yaml.v2"
)

// IRS yearly average currency exchange rates, expressed as units of currency per 1 USD.
var irsYearlyAverageRates = map[string]map[int]string{
	"AFN": {2019: "77.579", 2020: "76.651", 2021: "83.484", 2022: "90.084"},
	"DZD": {2019: "119.402", 2020: "126.741", 2021: "135.011", 2022: "142.123"},
	"ARS": {2019: "48.192", 2020: "70.635", 2021: "95.098", 2022: "130.792"},
	"AUD": {2019: "1.439", 2020: "1.452", 2021: "1.332", 2022: "1.442"},
	"BHD": {2019: "0.377", 2020: "0.377", 2021: "0.377", 2022: "0.377"},
	"BRL": {2019: "3.946", 2020: "5.151", 2021: "5.395", 2022: "5.165"},
	"CAD": {2019: "1.327", 2020: "1.341", 2021: "1.254", 2022: "1.301"},
	"KYD": {2019: "0.833", 2020: "0.833", 2021: "0.833", 2022: "0.833"},
	"CNY": {2019: "6.910", 2020: "6.900", 2021: "6.452", 2022: "6.730"},
	"DKK": {2019: "6.670", 2020: "6.538", 2021: "6.290", 2022: "7.077"},
	"EGP": {2019: "16.809", 2020: "15.813", 2021: "15.697", 2022: "19.208"},
	"EUR": {2019: "0.893", 2020: "0.877", 2021: "0.846", 2022: "0.951"},
	"HKD": {2019: "7.835", 2020: "7.756", 2021: "7.773", 2022: "7.831"},
	"HUF": {2019: "290.707", 2020: "307.766", 2021: "303.292", 2022: "372.775"},
	"ISK": {2019: "122.571", 2020: "135.354", 2021: "126.986", 2022: "135.296"},
	"INR": {2019: "70.394", 2020: "74.102", 2021: "73.936", 2022: "78.598"},
	"IQD": {2019: "1191.254", 2020: "1197.497", 2021: "1460.133", 2022: "1459.751"},
	"ILS": {2019: "3.563", 2020: "3.438", 2021: "3.232", 2022: "3.361"},
	"JPY": {2019: "109.008", 2020: "106.725", 2021: "109.817", 2022: "131.454"},
	"LBP": {2019: "1510.290", 2020: "1510.677", 2021: "1519.228", 2022: "1515.669"},
	"MXN": {2019: "19.246", 2020: "21.466", 2021: "20.284", 2022: "20.110"},
	"MAD": {2019: "9.614", 2020: "9.495", 2021: "8.995", 2022: "10.275"},
	"NZD": {2019: "1.518", 2020: "1.540", 2021: "1.415", 2022: "1.578"},
	"NOK": {2019: "8.802", 2020: "9.413", 2021: "8.598", 2022: "9.619"},
	"QAR": {2019: "3.641", 2020: "3.641", 2021: "3.644", 2022: "3.644"},
	"RUB": {2019: "64.687", 2020: "72.299", 2021: "73.686", 2022: "69.896"},
	"SAR": {2019: "3.751", 2020: "3.753", 2021: "3.751", 2022: "3.755"},
	"SGD": {2019: "1.364", 2020: "1.379", 2021: "1.344", 2022: "1.379"},
	"ZAR": {2019: "14.448", 2020: "16.458", 2021: "14.789", 2022: "16.377"},
	"KRW": {2019: "1165.697", 2020: "1179.199", 2021: "1144.883", 2022: "1291.729"},
	"SEK": {2019: "9.457", 2020: "9.205", 2021: "8.584", 2022: "10.122"},
	"CHF": {2019: "0.994", 2020: "0.939", 2021: "0.914", 2022: "0.955"},
	"TWD": {2019: "30.898", 2020: "29.460", 2021: "27.932", 2022: "29.813"},
	"THB": {2019: "31.032", 2020: "31.271", 2021: "31.997", 2022: "35.044"},
	"TND": {2019: "2.925", 2020: "2.836", 2021: "2.778", 2022: "3.082"},
	"TRY": {2019: "5.685", 2020: "7.025", 2021: "8.904", 2022: "16.572"},
	"AED": {2019: "3.673", 2020: "3.673", 2021: "3.673", 2022: "3.673"},
	"GBP": {2019: "0.784", 2020: "0.779", 2021: "0.727", 2022: "0.811"},
}

// TaxYearRates converts reference currency amounts to USD with one rate per (currency, year).
type TaxYearRates struct {
	rates map[string]map[int]decimal.Decimal
}

type taxRatesFile struct {
	Rates map[string]map[int]string `yaml:"rates"`
}

// DefaultTaxYearRates returns the built in IRS table.
func DefaultTaxYearRates() *TaxYearRates {
	t := &TaxYearRates{rates: make(map[string]map[int]decimal.Decimal)}
	for currency, years := range irsYearlyAverageRates {
		for year, value := range years {
			t.set(currency, year, decimal.RequireFromString(value))
		}
	}
	return t
}

// LoadTaxYearRates returns the built in table extended with the rates of a YAML file:
//
//	rates:
//	  EUR:
//	    2023: "0.924"
//
// An empty path returns the built in table.
func LoadTaxYearRates(path string) (*TaxYearRates, error) {
	t := DefaultTaxYearRates()
	if path == "" {
		return t, nil
	}

	logger.Get().Info("Loading tax year exchange rates", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading tax year rates file '%s': %w", path, err)
	}
	var file taxRatesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error unmarshalling tax year rates from '%s': %w", path, err)
	}

	count := 0
	for currency, years := range file.Rates {
		for year, value := range years {
			rate, err := decimal.NewFromString(strings.TrimSpace(value))
			if err != nil || !rate.IsPositive() {
				return nil, fmt.Errorf("invalid rate %q for %s %d in '%s'", value, currency, year, path)
			}
			t.set(currency, year, rate)
			count++
		}
	}
	logger.Get().Info("Tax year exchange rates loaded", "path", path, "overrides", count)
	return t, nil
}

func (t *TaxYearRates) set(currency string, year int, rate decimal.Decimal) {
	currency = strings.ToUpper(currency)
	if t.rates[currency] == nil {
		t.rates[currency] = make(map[int]decimal.Decimal)
	}
	t.rates[currency][year] = rate
}

// Rate returns how many units of currency make 1 USD in year. USD is always 1; unknown
// (currency, year) pairs get defaultRate.
func (t *TaxYearRates) Rate(currency string, year int, defaultRate decimal.Decimal) decimal.Decimal {
	currency = strings.ToUpper(currency)
	if currency == "USD" {
		return decimal.NewFromInt(1)
	}
	if rate, ok := t.rates[currency][year]; ok {
		return rate
	}
	return defaultRate
}

// Years lists the years with a known rate for currency, newest first.
func (t *TaxYearRates) Years(currency string) []int {
	var years []int
	for y := range t.rates[strings.ToUpper(currency)] {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
