// internal/model/schema.go
package model

import "time"

// CollectionSchema is the canonical field set recorded for a collection
// after a successful discovery run.
type CollectionSchema struct {
	Collection   string    `json:"collection" db:"collection"`
	Fields       []string  `json:"fields" db:"fields"`
	AbsentFields []string  `json:"absent_fields" db:"absent_fields"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
