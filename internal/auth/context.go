package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const userIDKey contextKey = "userID"

// UserIDHeader carries the acting user on audit API requests.
const UserIDHeader = "X-User-ID"

// SystemUserID is recorded as createdBy for writes without an authenticated user,
// such as synchronizer repairs started from the CLI.
var SystemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// ContextWithUserID returns a new context that carries the acting user.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext retrieves the acting user from the context, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// ActingUser returns the user from the context or SystemUserID.
func ActingUser(ctx context.Context) uuid.UUID {
	if id, ok := UserIDFromContext(ctx); ok {
		return id
	}
	return SystemUserID
}

// UserIDFromRequest parses the acting user header. An absent header is not an error.
func UserIDFromRequest(r *http.Request) (uuid.UUID, bool, error) {
	raw := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if raw == "" {
		return uuid.Nil, false, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("invalid %s header: %w", UserIDHeader, err)
	}
	return id, true, nil
}
