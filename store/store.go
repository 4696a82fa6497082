/*
Package store defines the document store contract.

PURPOSE:
  The engine keeps all application state in memory and persists it as one
  JSON array document per collection. The Store interface is that boundary:
  read a whole collection, write a whole collection. There are no deltas,
  no row-level operations, and no transactions beyond last-write-wins per
  collection.

CONTRACT:
  - Read returns the raw document bytes, or nil when the collection has
    never been written. Absence is NOT an error.
  - Write replaces the entire collection document.
  - Decoding (and any decryption) happens above this interface; a Store
    moves opaque bytes.

IMPLEMENTATIONS:
  - store/memory: map-backed, for tests and development
  - store/file:   one <collection>.json file per collection
  - store/sqlite: a key->document table (production single-file DB)
  - envelope:     decorator adding a symmetric-cipher envelope

SEE ALSO:
  - points/state.go: collection codec built on this interface
*/
package store

import "context"

// Collection names. Each holds a JSON array of records.
const (
	Customers            = "customers"
	Employees            = "employees"
	CustomerPoints       = "customerPoints"
	EmployeePoints       = "employeePoints"
	CustomerPointRecords = "customerPointRecords"
	EmployeePointRecords = "employeePointRecords"
)

// All lists every known collection, in persistence order.
var All = []string{
	Customers,
	Employees,
	CustomerPoints,
	EmployeePoints,
	CustomerPointRecords,
	EmployeePointRecords,
}

// Store persists whole-collection documents.
type Store interface {
	// Read returns the raw document for a collection, or nil if the
	// collection has never been written.
	Read(ctx context.Context, collection string) ([]byte, error)

	// Write replaces the document for a collection.
	Write(ctx context.Context, collection string, data []byte) error
}
