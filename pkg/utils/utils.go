package utils

import "database/sql"

// ToNullString wraps a string in sql.NullString, treating empty as NULL
func ToNullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{
			String: str,
			Valid:  false,
		}
	}
	return sql.NullString{
		String: str,
		Valid:  true,
	}
}

// FromNullString unwraps a sql.NullString, mapping NULL to empty
func FromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
