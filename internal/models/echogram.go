// Package models contains domain types for the echogram metadata uploader.
package models

import "time"

// AggregationKind identifies which of the three echogram products a file is.
type AggregationKind string

const (
	KindAveraged AggregationKind = "Averaged"
	KindFull     AggregationKind = "Full"
	KindHourly   AggregationKind = "Hourly"
)

// EchogramDescriptor is the typed result of classifying an echogram filename.
// It is built once per file and never modified afterwards.
type EchogramDescriptor struct {
	FilePath   string          `json:"filePath"`
	Kind       AggregationKind `json:"kind"`
	RangeStart time.Time       `json:"rangeStart"`
	RangeStop  time.Time       `json:"rangeStop"` // exclusive
}

// ProvenanceRecord holds the generation metadata read from the earliest
// hourly companion file of an echogram.
type ProvenanceRecord struct {
	// SourceFiles is the raw-file reference. For Full and Averaged echograms
	// it is rewritten into a wildcard/range expression covering the whole
	// aggregation window; for Hourly echograms it stays a single path.
	SourceFiles      string `json:"sourceFiles"`
	GeneratorName    string `json:"generatorName"`
	GeneratorVersion string `json:"generatorVersion"`
	ConversionTime   string `json:"conversionTime"`
}

// MetadataRecord is the single output record produced per echogram.
// All timestamps are NTP seconds (seconds since 1900-01-01 UTC).
type MetadataRecord struct {
	EchogramPath      string           `json:"echogramPath"`
	FileTime          float64          `json:"fileTime"`
	InternalTimestamp float64          `json:"internalTimestamp"`
	DriverTimestamp   float64          `json:"driverTimestamp"`
	Provenance        ProvenanceRecord `json:"provenance"`
}
