package db

import "github.com/google/uuid"

// isUUID guards uuid columns so malformed path ids read as not found instead of a query error.
func isUUID(s string) bool {
	return uuid.Validate(s) == nil
}
