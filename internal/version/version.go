// ABOUTME: Version information for noodler
// ABOUTME: Single source of truth for product identity strings
package version

import "fmt"

const (
	// Version is the current release
	Version = "0.3.0"
	// Product is the name reported to remote clients
	Product = "noodler"
	// Manufacturer identifies the project
	Manufacturer = "noodler-audio"
)

// UserAgent returns the identity sent in remote hello messages
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s)", Product, Version, Manufacturer)
}
