// Package service contains the application's business logic, sitting between
// the HTTP handlers and the persistence layer. Services depend on store
// interfaces and the task scheduler, never on concrete implementations.
package service
