package solar

import "strconv"

// FillValue is the sentinel the POWER API reports for missing data.
const FillValue = -999

// AnnualMean averages the month values of m. Values that do not parse or
// equal the fill value are ignored; ok is false when nothing is left.
func AnnualMean(m Months) (mean float64, ok bool) {
	var (
		sum float64
		n   int
	)
	for k, raw := range m {
		if !IsMonthKey(k) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v == FillValue {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
