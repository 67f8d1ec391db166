package series

import (
	"time"

	"github.com/montanaflynn/stats"
)

// Band is one point of a Bollinger band over the mid price.
type Band struct {
	Time  time.Time
	SMA   float64
	Upper float64
	Lower float64
	Valid bool
}

// BollingerBands computes a rolling mean of the mid price and the band k
// sample standard deviations around it. A point is valid only when its whole
// window has a mid price.
func (f Frame) BollingerBands(window int, k float64) []Band {
	bands := make([]Band, len(f.Rows))
	mids := make([]float64, 0, window)
	for i, row := range f.Rows {
		bands[i].Time = row.Time
		if window < 2 || i < window-1 {
			continue
		}

		mids = mids[:0]
		for _, r := range f.Rows[i-window+1 : i+1] {
			if !r.Mid.Valid {
				break
			}
			mids = append(mids, r.Mid.Decimal.InexactFloat64())
		}
		if len(mids) != window {
			continue
		}

		sma, err := stats.Mean(mids)
		if err != nil {
			continue
		}
		sd, err := stats.StandardDeviationSample(mids)
		if err != nil {
			continue
		}
		bands[i] = Band{Time: row.Time, SMA: sma, Upper: sma + k*sd, Lower: sma - k*sd, Valid: true}
	}
	return bands
}
