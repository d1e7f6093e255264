package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ooi-uploader/backend/internal/models"
)

// defaultRegistry covers the ZPLSC-C instrument when no registry file exists.
var defaultRegistry = models.InstrumentRegistry{
	Instruments: []models.Instrument{
		{
			Series: "ZPLSC-C",
			Name:   "Bio-acoustic Sonar (Coastal)",
			FilePatterns: []string{
				`Bioacoustic_Echogram_[0-9]{8}-[0-9]{8}_Calibrated_Sv.*\.nc`,
				`OOI-D[0-9]{8}-T[0-9]{6}\.nc`,
			},
		},
	},
}

// LoadInstruments loads the instrument registry from a YAML file. If the file
// does not exist it is created with the built-in defaults.
func LoadInstruments(path string) (*models.InstrumentRegistry, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		registry := defaultRegistry
		if err := SaveInstruments(path, &registry); err != nil {
			return nil, fmt.Errorf("failed to create default instrument registry: %w", err)
		}
		return &registry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instrument registry: %w", err)
	}

	registry := &models.InstrumentRegistry{}
	if err := yaml.Unmarshal(data, registry); err != nil {
		return nil, fmt.Errorf("failed to parse instrument registry: %w", err)
	}

	return registry, nil
}

// SaveInstruments writes the registry back to disk as YAML.
func SaveInstruments(path string, registry *models.InstrumentRegistry) error {
	data, err := yaml.Marshal(registry)
	if err != nil {
		return fmt.Errorf("failed to marshal instrument registry: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write instrument registry: %w", err)
	}

	return nil
}
