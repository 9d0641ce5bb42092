package env

import "os"

// Get reads an environment variable, treating empty as unset.
func Get(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
