package echogram

import (
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ooi-uploader/backend/internal/models"
)

// Names of the Provenance group and its attributes in the companion files.
const (
	provenanceGroup      = "Provenance"
	attrSourceFiles      = "src_filenames"
	attrGeneratorName    = "conversion_software_name"
	attrGeneratorVersion = "conversion_software_version"
	attrConversionTime   = "conversion_time"
)

// loadProvenance lists dir, keeps the entries matching the window, and reads
// the provenance attributes from the earliest surviving file. Lexicographic
// order equals chronological order here because the date and time fields in
// hourly filenames are fixed-width and zero-padded; a matching name whose
// timestamp fails to parse is skipped with a warning rather than allowed to
// break that invariant.
func (c *Correlator) loadProvenance(dir string, d *models.EchogramDescriptor, w Window) (*models.ProvenanceRecord, error) {
	names, err := c.ListDir(dir)
	if err != nil {
		return nil, err
	}

	var candidates []string
	for _, name := range names {
		if !w.Pattern.MatchString(name) {
			continue
		}
		if d.Kind != models.KindHourly {
			ts, err := time.Parse(hourlyNameLayout, name)
			if err != nil {
				c.Warnf("skipping companion candidate %s: %v", name, err)
				continue
			}
			if ts.Before(w.Start) || !ts.Before(w.Stop) {
				continue
			}
		}
		candidates = append(candidates, name)
	}

	if len(candidates) == 0 {
		return nil, &CorrelationError{
			Kind:         d.Kind,
			EchogramName: filepath.Base(d.FilePath),
			Pattern:      w.Pattern.String(),
			Start:        w.Start,
			Stop:         w.Stop,
		}
	}

	sort.Strings(candidates)
	return c.readProvenance(filepath.Join(dir, candidates[0]))
}

func (c *Correlator) readProvenance(path string) (*models.ProvenanceRecord, error) {
	f, err := c.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := f.Group(provenanceGroup)
	if err != nil {
		return nil, err
	}

	var p models.ProvenanceRecord
	if p.SourceFiles, err = g.Attr(attrSourceFiles); err != nil {
		return nil, err
	}
	if p.GeneratorName, err = g.Attr(attrGeneratorName); err != nil {
		return nil, err
	}
	if p.GeneratorVersion, err = g.Attr(attrGeneratorVersion); err != nil {
		return nil, err
	}
	if p.ConversionTime, err = g.Attr(attrConversionTime); err != nil {
		return nil, err
	}
	return &p, nil
}

// TransformProvenance rewrites the source-file reference into the range or
// wildcard expression appropriate to the echogram's aggregation kind. The
// input record is not modified; the rewritten copy is returned.
//
// Hourly echograms are generated from exactly one raw file, so their
// reference is kept as-is, as is any record with an empty reference.
func TransformProvenance(p *models.ProvenanceRecord, kind models.AggregationKind, start, stop time.Time) *models.ProvenanceRecord {
	out := *p
	if kind == models.KindHourly || p.SourceFiles == "" {
		return &out
	}

	// Example reference: /data/zplsc/ce04osps/2017/09/10/OOI-D20170910-T013835.raw
	ref := p.SourceFiles
	ext := filepath.Ext(ref)

	switch kind {
	case models.KindFull:
		// A full-day echogram covers every hour of one specific day:
		// wildcard the time-of-day token.
		if i := strings.LastIndex(ref, "T"); i >= 0 {
			out.SourceFiles = ref[:i] + "T*" + ext
		}

	case models.KindAveraged:
		dailyDir, file := filepath.Split(ref)
		stem := strings.TrimSuffix(file, ext)
		base := stem
		if i := strings.LastIndex(stem, "D"); i >= 0 {
			base = stem[:i]
		}
		tmpl := base + "D*-T*" + ext

		monthlyDir := filepath.Dir(filepath.Clean(dailyDir))
		yearlyDir := filepath.Dir(monthlyDir)

		// The interval stop is the day after the last covered day.
		last := stop.AddDate(0, 0, -1)

		out.SourceFiles = filepath.Join(yearlyDir, start.Format("01"), start.Format("02"), tmpl)
		if last.After(start) {
			out.SourceFiles += " ... " +
				filepath.Join(yearlyDir, last.Format("01"), last.Format("02"), tmpl)
		}
	}

	return &out
}
