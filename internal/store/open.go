// ABOUTME: Store constructor that selects a backend by driver name
// ABOUTME: Drivers: sqlite (default), file, memory

package store

import "fmt"

// Driver names accepted by Open
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Open creates the Store for the given driver and path.
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", DriverSQLite:
		return NewSQLiteStore(path)
	case DriverFile:
		return NewFileStore(path)
	case DriverMemory:
		return NewMockStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
