package echogram

import (
	"fmt"
	"time"
)

// ntpEpochOffset is the number of seconds between the NTP epoch (1900-01-01)
// and the Unix epoch (1970-01-01). Record timestamps are NTP seconds.
const ntpEpochOffset = 2208988800

// NTPFromUnix converts Unix seconds to NTP seconds.
func NTPFromUnix(sec float64) float64 {
	return sec + ntpEpochOffset
}

// NTPFromTime converts a time.Time to NTP seconds.
func NTPFromTime(t time.Time) float64 {
	return float64(t.UnixNano())/1e9 + ntpEpochOffset
}

// conversionTimeLayouts are the timestamp forms the echogram generator has
// been observed to write into the conversion_time attribute.
var conversionTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"20060102T150405Z",
}

// ParseConversionTime parses a conversion_time attribute string into NTP seconds.
func ParseConversionTime(s string) (float64, error) {
	for _, layout := range conversionTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NTPFromTime(t), nil
		}
	}
	return 0, fmt.Errorf("unrecognized conversion time %q", s)
}
