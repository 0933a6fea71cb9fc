// Package utils
package utils

import (
	"errors"
	"fmt"
	"math"
)

func Wrap(msg string, errs ...error) error {
	fullerr := msg
	for _, err := range errs {
		if err == nil {
			continue
		}
		fullerr = fmt.Sprintf("%s: %s", fullerr, err)
	}
	return errors.New(fullerr)
}

// Round4 rounds to the settlement precision of 4 decimal places.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// FormatAmount renders a settlement amount the way snapshots carry it.
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
