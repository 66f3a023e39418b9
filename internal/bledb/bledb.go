//go:generate go run ./gen

// Package bledb provides the Bluetooth SIG company identifier table.
//
// The table is generated from Nordic Semiconductor's bluetooth-numbers-database
// into company_ids.yaml and embedded at build time.
package bledb

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed company_ids.yaml
var companyData []byte

// Company is a single company identifier assignment.
type Company struct {
	ID   uint16 `yaml:"id"`
	Name string `yaml:"name"`
}

// Database is the on-disk layout of company_ids.yaml.
type Database struct {
	Version   string    `yaml:"version"`
	Source    string    `yaml:"source"`
	Companies []Company `yaml:"companies"`
}

// Table maps company identifiers to names.
type Table map[uint16]string

// NameFor returns the registered name for a company identifier.
func (t Table) NameFor(id uint16) (string, bool) {
	name, ok := t[id]
	return name, ok
}

var (
	loadOnce    sync.Once
	companies   Table
	dataVersion string
)

// Parse decodes a company database in the company_ids.yaml layout.
// The first entry wins when an identifier is listed twice.
func Parse(data []byte) (Table, string, error) {
	var db Database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, "", fmt.Errorf("failed to parse company database: %w", err)
	}

	table := make(Table, len(db.Companies))
	for _, c := range db.Companies {
		if c.Name == "" {
			continue
		}
		if _, exists := table[c.ID]; exists {
			continue
		}
		table[c.ID] = c.Name
	}
	return table, db.Version, nil
}

func load() {
	var err error
	companies, dataVersion, err = Parse(companyData)
	if err != nil {
		// The embedded file is generated; a parse failure is a build defect.
		panic(err)
	}
}

// Companies returns the embedded company table.
func Companies() Table {
	loadOnce.Do(load)
	return companies
}

// LookupCompany returns the name registered for a company identifier.
func LookupCompany(id uint16) (string, bool) {
	return Companies().NameFor(id)
}

// DataVersion reports when the embedded table was generated.
func DataVersion() string {
	loadOnce.Do(load)
	return dataVersion
}
