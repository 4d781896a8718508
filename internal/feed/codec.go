package feed

import (
	"strconv"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

func toFloat(d decimal.Decimal) (float64, error) {
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0, errors.Wrap(exception.ErrFeedBadPayload, d.String())
	}
	return v, nil
}

// toLevels converts [price, qty] decimal rows into levels, preserving the
// producer's ordering.
func toLevels(rows [][]decimal.Decimal) ([]Level, error) {
	levels := make([]Level, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, exception.ErrFeedBadLevel
		}
		price, err := toFloat(row[0])
		if err != nil {
			return nil, err
		}
		qty, err := toFloat(row[1])
		if err != nil {
			return nil, err
		}
		levels = append(levels, Level{Price: price, Qty: qty})
	}
	return levels, nil
}
