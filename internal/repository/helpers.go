package repository

import (
	"database/sql"
	"encoding/json"

	"greencity/internal/model"

	"github.com/lib/pq"
)

// stringSlice turns a scanned TEXT[] into a slice that encodes as [] when empty.
func stringSlice(a pq.StringArray) []string {
	if a == nil {
		return []string{}
	}
	return []string(a)
}

// nullableJSON encodes v for a JSONB column, keeping SQL NULL for nil.
func nullableJSON[T any](v *T) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectRow(result sql.Result, notFound string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NotFound(notFound)
	}
	return nil
}
