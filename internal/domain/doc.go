// Package domain contains the core entities of the chat relay: conversations
// and their messages. Entities carry their own validation and have no
// dependencies on storage or transport concerns.
package domain
