package echogram

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ooi-uploader/backend/internal/dataset"
	"github.com/ooi-uploader/backend/internal/models"
	"github.com/ooi-uploader/backend/internal/particle"
)

// fullKindTimestampOffset keeps a Full echogram's record distinguishable from
// the Hourly record sharing the same first ping time: downstream storage
// deduplicates records with identical timestamps.
const fullKindTimestampOffset = 0.001

// Correlator derives the metadata record for a pre-generated echogram.
// The zero value is not usable; construct with NewCorrelator and override
// fields as needed (tests inject ListDir/Open/Warnf).
type Correlator struct {
	// ListDir returns the entry names of a directory, non-recursively.
	ListDir func(dir string) ([]string, error)
	// Open opens a converted data file for reading.
	Open func(path string) (*dataset.File, error)
	// Warnf reports recoverable oddities; errors carry their own context.
	Warnf func(format string, args ...any)
}

// NewCorrelator creates a correlator backed by the local filesystem.
func NewCorrelator() *Correlator {
	return &Correlator{
		ListDir: listDirNames,
		Open:    dataset.Open,
		Warnf:   func(string, ...any) {},
	}
}

func listDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Correlate runs the full pipeline for one echogram:
// filename -> descriptor -> search window -> provenance -> transformed
// provenance -> first ping time -> assembled record. Every step blocks on the
// previous one; any failure is fatal to the invocation and no record is produced.
func (c *Correlator) Correlate(echogramPath string) (*models.MetadataRecord, error) {
	d, err := Classify(echogramPath)
	if err != nil {
		return nil, err
	}

	w := ResolveWindow(d)

	prov, err := c.loadProvenance(filepath.Dir(echogramPath), d, w)
	if err != nil {
		return nil, err
	}
	prov = TransformProvenance(prov, d.Kind, w.Start, w.Stop)

	firstPing, err := c.firstPingTime(echogramPath, d.Kind)
	if err != nil {
		return nil, err
	}

	return Assemble(d, prov, firstPing)
}

// Parse correlates one echogram and hands the result to the data handler:
// exactly one record on success, zero on failure. The transformed provenance
// is also surfaced as processing-info strings for the caller.
func (c *Correlator) Parse(echogramPath string, h particle.DataHandler) error {
	rec, err := c.Correlate(echogramPath)
	if err != nil {
		return err
	}

	h.Append(rec)

	if rec.Provenance.SourceFiles != "" {
		h.SetProcessingInfo(particle.InfoDataFile, rec.Provenance.SourceFiles)
	}
	if rec.Provenance.GeneratorName != "" {
		h.SetProcessingInfo(particle.InfoParser, rec.Provenance.GeneratorName)
	}
	if rec.Provenance.GeneratorVersion != "" {
		h.SetProcessingInfo(particle.InfoParserVersion, rec.Provenance.GeneratorVersion)
	}
	return nil
}

// Assemble combines the pipeline outputs into the single metadata record.
// The driver timestamp comes from the provenance conversion time, overriding
// the wall-clock default a generic record constructor would assign.
func Assemble(d *models.EchogramDescriptor, p *models.ProvenanceRecord, firstPing float64) (*models.MetadataRecord, error) {
	driverTS, err := ParseConversionTime(p.ConversionTime)
	if err != nil {
		return nil, fmt.Errorf("provenance of %s: %w", filepath.Base(d.FilePath), err)
	}

	offset := 0.0
	if d.Kind == models.KindFull {
		offset = fullKindTimestampOffset
	}

	return &models.MetadataRecord{
		EchogramPath:      d.FilePath,
		FileTime:          firstPing,
		InternalTimestamp: firstPing + offset,
		DriverTimestamp:   driverTS,
		Provenance:        *p,
	}, nil
}
