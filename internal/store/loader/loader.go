// Package loader registers store drivers via blank imports.
// Import this package to ensure the default store drivers are available.
//
// Usage in main.go:
//
//	import _ "github.com/daymark-app/daymark/internal/store/loader"
package loader

import (
	// Register the in-memory store driver
	_ "github.com/daymark-app/daymark/internal/store/memory"

	// Register the sqlite store driver
	_ "github.com/daymark-app/daymark/internal/store/sqlite"
)
