// Package echogram correlates pre-generated echogram files with the raw
// per-hour source files they were built from, and derives the single
// metadata record uploaded for each echogram.
package echogram

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ooi-uploader/backend/internal/models"
)

// The two filename grammars an echogram can arrive under.
// Examples:
//
//	CE07SHSM_Bioacoustic_Echogram_20191020-20191027_Calibrated_Sv_Averaged.nc
//	CE07SHSM_Bioacoustic_Echogram_20191020-20191027_Calibrated_Sv_Full_20191020.nc
//	OOI-D20191020-T013835.nc
const (
	rangeNamePattern  = `Bioacoustic_Echogram_([0-9]{8})-([0-9]{8})_Calibrated_Sv_(Averaged|Full)_?([0-9]{8})?\.nc`
	hourlyNamePattern = `^OOI-D[0-9]{8}-T[0-9]{6}\.nc$`

	// hourlyNameLayout parses the timestamp embedded in an hourly filename.
	hourlyNameLayout = "OOI-D20060102-T150405.nc"

	dayLayout = "20060102"
)

var (
	rangeNameRe  = regexp.MustCompile(rangeNamePattern)
	hourlyNameRe = regexp.MustCompile(hourlyNamePattern)
)

// Classify parses an echogram filename into a descriptor. An unrecognized
// filename yields a *FormatError; there is no fallback.
func Classify(path string) (*models.EchogramDescriptor, error) {
	name := filepath.Base(path)

	if m := rangeNameRe.FindStringSubmatch(name); m != nil {
		return classifyRange(path, m)
	}

	if hourlyNameRe.MatchString(name) {
		ts, err := time.Parse(hourlyNameLayout, name)
		if err != nil {
			return nil, fmt.Errorf("parsing hourly filename %q: %w", name, err)
		}
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		return &models.EchogramDescriptor{
			FilePath:   path,
			Kind:       models.KindHourly,
			RangeStart: day,
			RangeStop:  day,
		}, nil
	}

	return nil, &FormatError{
		Filename:      name,
		RangePattern:  rangeNamePattern,
		HourlyPattern: hourlyNamePattern,
	}
}

func classifyRange(path string, m []string) (*models.EchogramDescriptor, error) {
	startDate, stopDate, kind, date := m[1], m[2], models.AggregationKind(m[3]), m[4]

	switch kind {
	case models.KindFull:
		// Full echograms embed the single day they cover after the type tag.
		if date == "" {
			return nil, &FormatError{
				Filename:      filepath.Base(path),
				RangePattern:  rangeNamePattern,
				HourlyPattern: hourlyNamePattern,
			}
		}
		day, err := time.Parse(dayLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parsing embedded date %q: %w", date, err)
		}
		return &models.EchogramDescriptor{
			FilePath:   path,
			Kind:       kind,
			RangeStart: day,
			RangeStop:  day.AddDate(0, 0, 1),
		}, nil

	default: // Averaged
		start, err := time.Parse(dayLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("parsing start date %q: %w", startDate, err)
		}
		// The stop date in the filename is already the day after the last
		// covered day, so it is used verbatim as the exclusive bound.
		stop, err := time.Parse(dayLayout, stopDate)
		if err != nil {
			return nil, fmt.Errorf("parsing stop date %q: %w", stopDate, err)
		}
		return &models.EchogramDescriptor{
			FilePath:   path,
			Kind:       kind,
			RangeStart: start,
			RangeStop:  stop,
		}, nil
	}
}
