// Package idgen provides short, URL-safe entity ids backed by nanoid and
// time-ordered event ids backed by UUIDv7.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefix identifies the entity kind an id belongs to.
type Prefix string

const (
	Organization Prefix = "org-"
	CCR          Prefix = "ccr-"
	Board        Prefix = "brd-"
	WorkItem     Prefix = "wi-"
	Dependency   Prefix = "dep-"
	Schedule     Prefix = "sch-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// New returns a new unique id for the given entity kind.
func New(prefix Prefix) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return string(prefix) + id, nil
}

// EventID returns a UUIDv7 string. Ids sort in creation order.
func EventID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id.String(), nil
}
