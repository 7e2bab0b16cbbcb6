// internal/model/fixture.go
package model

// SeedStep inserts one record. Key names the row so later steps can
// reference its id as "@<collection>/<key>".
type SeedStep struct {
	Collection string `yaml:"collection" json:"collection"`
	Key        string `yaml:"key" json:"key"`
	Record     Record `yaml:"record" json:"record"`
}

type Fixture struct {
	Name  string     `yaml:"name" json:"name"`
	Steps []SeedStep `yaml:"steps" json:"steps"`
}

// SeededRow identifies a row created by the loader.
type SeededRow struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	ID         string `json:"id"`
}

type SeedFailure struct {
	Collection string `json:"collection"`
	Key        string `json:"key"`
	Error      string `json:"error"`
}

// SeedSummary lists inserted rows in insertion order.
type SeedSummary struct {
	Fixture  string        `json:"fixture"`
	Inserted []SeededRow   `json:"inserted"`
	Failed   []SeedFailure `json:"failed"`
}
