package services

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func StringToUUID(s string) (pgtype.UUID, error) {
	var pg_uuid pgtype.UUID

	parsed, err := uuid.Parse(s)
	if err != nil {
		return pg_uuid, err
	}

	pg_uuid.Bytes = parsed
	pg_uuid.Valid = true
	return pg_uuid, nil
}

func UUIDToString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	return uuid.UUID(id.Bytes).String()
}
