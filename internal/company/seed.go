package company

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedEntry is one company of a YAML seed file.
type SeedEntry struct {
	Name   string `yaml:"name"`
	TaxID  string `yaml:"tax_id"`
	Email  string `yaml:"email"`
	Status string `yaml:"status"`
}

// DefaultSeed populates a development directory when no seed file is configured.
var DefaultSeed = []SeedEntry{
	{Name: "Acme Logistics", TaxID: "ACME010101AB1", Email: "billing@acme.example", Status: StatusApproved},
	{Name: "Borealis Foods", TaxID: "BORE990101XY2", Email: "admin@borealis.example", Status: StatusApproved},
	{Name: "Cobalt Studio", TaxID: "COBA850505ZZ3", Email: "hello@cobalt.example", Status: StatusPending},
}

// LoadSeed reads a YAML list of companies.
func LoadSeed(path string) ([]SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var entries []SeedEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return entries, nil
}
