package billing

import (
	"fmt"
	"time"

	"github.com/username/duty-pay/pkg/dateutil"
)

// HourBlock is one contiguous slice of a duty, never longer than an hour.
// Pricing bills every block as a full hour, including short first and last
// blocks; this is pay policy, not an approximation.
type HourBlock struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is the real length of the block
func (b HourBlock) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Split cuts [start, end) at every wall-clock hour boundary. Blocks tile the
// interval exactly: the first starts at start, the last ends at end and each
// block ends where the next begins.
func Split(start, end time.Time) ([]HourBlock, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidInterval, dateutil.FormatDateTime(end), dateutil.FormatDateTime(start))
	}

	blocks := make([]HourBlock, 0, int(end.Sub(start)/time.Hour)+2)
	for t := start; t.Before(end); {
		next := dateutil.NextHourBoundary(t)
		if next.After(end) {
			next = end
		}
		blocks = append(blocks, HourBlock{Start: t, End: next})
		t = next
	}

	return blocks, nil
}
