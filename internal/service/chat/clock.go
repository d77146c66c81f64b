package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock returns the current instant.
type Clock func() time.Time

// IDSource produces a candidate session identifier.
type IDSource func() (string, error)

const sessionIDPrefix = "session_"

func systemClock() time.Time {
	return time.Now().UTC()
}

func newSessionID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return sessionIDPrefix + strings.ReplaceAll(id.String(), "-", ""), nil
}
