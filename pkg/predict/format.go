package predict

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const PoleGap = "POLE"

var sixty = decimal.NewFromInt(60)

// FormatLapTime formats seconds as M:SS.mmm.
// NaN and infinite values are rendered as is.
func FormatLapTime(seconds float64) string {
	if !isFinite(seconds) {
		return fmt.Sprintf("%v", seconds)
	}
	d := decimal.NewFromFloat(seconds)
	minutes := d.Div(sixty).Floor()
	secs := d.Mod(sixty).StringFixed(3)
	if len(secs) < 6 {
		secs = strings.Repeat("0", 6-len(secs)) + secs
	}
	return minutes.String() + ":" + secs
}

// FormatGap formats the delta to the pole time as +<seconds>s
func FormatGap(delta float64) string {
	if !isFinite(delta) {
		return fmt.Sprintf("%+vs", delta)
	}
	return "+" + decimal.NewFromFloat(delta).StringFixed(3) + "s"
}

// ParseGap converts a gap string back to seconds. POLE yields 0.
func ParseGap(gap string) (float64, error) {
	if gap == PoleGap {
		return 0, nil
	}
	v := strings.TrimSuffix(strings.TrimPrefix(gap, "+"), "s")
	d, err := decimal.NewFromString(v)
	if err != nil {
		return 0, fmt.Errorf("invalid gap %q: %w", gap, err)
	}
	return d.InexactFloat64(), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
