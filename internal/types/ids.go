package types

import (
	"time"

	"github.com/google/uuid"
)

// NewRecordID generates a UUIDv7 log record identifier.
// Time-ordered IDs keep inserts clustered and make ID order match write order.
// Panics on clock regression (uuid.Must).
func NewRecordID() RecordID {
	return RecordID(uuid.Must(uuid.NewV7()).String())
}

// ParseRecordID validates and converts a string to RecordID.
func ParseRecordID(s string) (RecordID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RecordID(s), nil
}

// RecordIDTime extracts the timestamp embedded in a UUIDv7 ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func RecordIDTime(id RecordID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
