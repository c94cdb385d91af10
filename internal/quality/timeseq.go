package quality

import (
	"time"

	"github.com/JonMunkholm/loggerimport/internal/metadata"
)

// CheckTimeSeqStrict classifies each timestamp of seq against a strictly
// regular series with the given interval. The first timestamp is good when
// it lies on an interval boundary. Each following timestamp is bad when it
// is off a boundary or not after the expected next boundary, unusual when
// it comes after a gap, and good otherwise.
func CheckTimeSeqStrict(seq []time.Time, iv metadata.Interval) ([]Quality, error) {
	delta, err := iv.Delta()
	if err != nil {
		return nil, err
	}
	out := make([]Quality, 0, len(seq))
	for i, y := range seq {
		fy, _ := iv.Floor(y)
		if i == 0 {
			if y.Equal(fy) {
				out = append(out, Good)
			} else {
				out = append(out, Bad)
			}
			continue
		}
		if !y.Equal(fy) {
			out = append(out, Bad)
			continue
		}
		fx, _ := iv.Floor(seq[i-1])
		expected := delta.AddTo(fx)
		switch {
		case y.Equal(expected):
			out = append(out, Good)
		case y.After(expected):
			out = append(out, Unusual)
		default:
			out = append(out, Bad)
		}
	}
	return out, nil
}
