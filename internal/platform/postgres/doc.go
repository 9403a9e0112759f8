// Package postgres provides PostgreSQL implementations of the persistence
// interfaces defined in the store package, using database/sql with the pgx
// driver.
package postgres
