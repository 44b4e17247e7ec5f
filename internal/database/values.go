package database

import (
	"github.com/google/uuid"
)

// JSONValue converts a JSON document into a driver value. Both lib/pq and the MySQL driver
// accept JSON as text; raw []byte would be sent as bytea by lib/pq. Empty input maps to NULL.
func JSONValue(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// UUIDBytes encodes id for a MySQL BINARY(16) column.
func UUIDBytes(id uuid.UUID) []byte {
	b, _ := id.MarshalBinary()
	return b
}

// NullableUUIDBytes encodes an optional id for a MySQL BINARY(16) column.
func NullableUUIDBytes(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return UUIDBytes(*id)
}

// UUIDFromBytes decodes a MySQL BINARY(16) value.
func UUIDFromBytes(b []byte) (uuid.UUID, error) {
	var id uuid.UUID
	if err := id.UnmarshalBinary(b); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// NullableUUIDFromBytes decodes an optional MySQL BINARY(16) value. NULL yields nil.
func NullableUUIDFromBytes(b []byte) (*uuid.UUID, error) {
	if len(b) == 0 {
		return nil, nil
	}
	id, err := UUIDFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
