package echogram

import (
	"fmt"
	"time"

	"github.com/ooi-uploader/backend/internal/models"
)

// FormatError reports an echogram filename that matches neither of the
// recognized grammars. It is terminal for the whole run.
type FormatError struct {
	Filename      string
	RangePattern  string
	HourlyPattern string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("filename %q not in either of the expected formats: %q or %q",
		e.Filename, e.RangePattern, e.HourlyPattern)
}

// CorrelationError reports that no hourly companion file satisfied the
// resolved pattern and date interval.
type CorrelationError struct {
	Kind         models.AggregationKind
	EchogramName string
	Pattern      string
	Start        time.Time
	Stop         time.Time
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("hourly files from %s to %s corresponding to %q echogram %q could not be found that match pattern %q",
		e.Start.Format(hourlyNameLayout), e.Stop.Format(hourlyNameLayout),
		e.Kind, e.EchogramName, e.Pattern)
}
