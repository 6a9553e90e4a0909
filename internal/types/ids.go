package types

import "github.com/google/uuid"

// NewSearchID generates a UUIDv7 saved-search identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSearchID() SearchID {
	return SearchID(uuid.Must(uuid.NewV7()).String())
}

// NewAPIKeyID generates a UUIDv7 API key identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewAPIKeyID() APIKeyID {
	return APIKeyID(uuid.Must(uuid.NewV7()).String())
}

// ParseSearchID validates and converts a string to SearchID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseSearchID(s string) (SearchID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return SearchID(s), nil
}
