package echogram

import (
	"path/filepath"
	"regexp"
	"time"

	"github.com/ooi-uploader/backend/internal/models"
)

// Window is the search criteria used to find the hourly companion files of
// an echogram: a filename pattern plus a half-open date interval [Start, Stop).
type Window struct {
	Pattern *regexp.Regexp
	Start   time.Time
	Stop    time.Time
}

// ResolveWindow computes the companion-file search window for a descriptor.
// The pattern narrows the directory scan before the more expensive date
// filter runs: Full echograms only ever need one day's worth of files.
func ResolveWindow(d *models.EchogramDescriptor) Window {
	switch d.Kind {
	case models.KindFull:
		return Window{
			Pattern: regexp.MustCompile(`^OOI-D` + d.RangeStart.Format(dayLayout) + `-T[0-9]{6}\.nc$`),
			Start:   d.RangeStart,
			Stop:    d.RangeStop,
		}
	case models.KindAveraged:
		return Window{
			Pattern: regexp.MustCompile(`^OOI-D[0-9]{8}-T[0-9]{6}\.nc$`),
			Start:   d.RangeStart,
			Stop:    d.RangeStop,
		}
	default:
		// An hourly echogram is its own companion file; the interval is
		// degenerate and date filtering is bypassed entirely.
		return Window{
			Pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(filepath.Base(d.FilePath)) + `$`),
			Start:   d.RangeStart,
			Stop:    d.RangeStop,
		}
	}
}
