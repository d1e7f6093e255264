// Package particle defines the output side of an ingest run: assembled
// metadata records plus a small set of processing-info strings describing
// how the source data was generated.
package particle

import "github.com/ooi-uploader/backend/internal/models"

// ProcessingInfoKey identifies one processing-info entry.
type ProcessingInfoKey string

const (
	InfoDataFile      ProcessingInfoKey = "dataFile"
	InfoParser        ProcessingInfoKey = "parser"
	InfoParserVersion ProcessingInfoKey = "parserVersion"
)

// DataHandler receives the output of a correlation run.
type DataHandler interface {
	// Append adds one assembled record to the output.
	Append(rec *models.MetadataRecord)
	// SetProcessingInfo records one processing-info string.
	SetProcessingInfo(key ProcessingInfoKey, value string)
}

// Collector is an in-memory DataHandler.
type Collector struct {
	Records []*models.MetadataRecord
	Info    map[ProcessingInfoKey]string
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		Info: make(map[ProcessingInfoKey]string),
	}
}

// Append adds a record to the collector.
func (c *Collector) Append(rec *models.MetadataRecord) {
	c.Records = append(c.Records, rec)
}

// SetProcessingInfo stores a processing-info string.
func (c *Collector) SetProcessingInfo(key ProcessingInfoKey, value string) {
	c.Info[key] = value
}
