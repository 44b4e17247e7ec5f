package database

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

const (
	pqUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	pqForeignKeyViolated = "23503"
	mysqlForeignKeyFails = 1452
)

// IsUniqueViolation reports whether err is a unique constraint violation from
// PostgreSQL or MySQL.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}

// IsUniqueViolationOn reports whether err is a unique violation of the named constraint.
// MySQL only reports the key name inside the error message.
func IsUniqueViolationOn(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation && pqErr.Constraint == constraint
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry && strings.Contains(myErr.Message, constraint)
	}
	return false
}

// IsForeignKeyViolation reports whether err is a foreign key violation from
// PostgreSQL or MySQL.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqForeignKeyViolated
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlForeignKeyFails
	}
	return false
}
