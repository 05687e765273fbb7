package env

import (
	"os"
	"strings"
)

// Get returns the value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// ServiceName picks the logger service name for a binary, honouring an
// explicit WACART_SERVICE_NAME override.
func ServiceName(fallback string) string {
	return Get("WACART_SERVICE_NAME", fallback)
}
