package chatid

import (
	"errors"
	"fmt"
	"strings"
)

// Separator joins the two participant ids of a direct conversation. Provider
// uids never contain it.
const Separator = "_"

var (
	// ErrUnauthenticated indicates no signed-in user was supplied for an
	// operation that requires one.
	ErrUnauthenticated = errors.New("no authenticated user")
	// ErrInvalidParticipant indicates a malformed or empty participant id.
	ErrInvalidParticipant = errors.New("invalid participant id")
)

// Direct derives the conversation key for a pair of users. The key is
// commutative: Direct(a, b) == Direct(b, a), so both participants resolve
// the same conversation independent of who initiates.
func Direct(a, b string) (string, error) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)

	if a == "" || b == "" {
		return "", ErrInvalidParticipant
	}
	if strings.Contains(a, Separator) || strings.Contains(b, Separator) {
		return "", ErrInvalidParticipant
	}
	if a == b {
		return "", ErrInvalidParticipant
	}

	if a > b {
		a, b = b, a
	}

	return a + Separator + b, nil
}

// Group derives the feed room key for a group conversation.
func Group(groupID uint) string {
	return fmt.Sprintf("group:%d", groupID)
}
