package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActingUser(t *testing.T) {
	assert.Equal(t, SystemUserID, ActingUser(context.Background()))
	assert.Equal(t, SystemUserID, ActingUser(ContextWithUserID(context.Background(), uuid.Nil)))

	id := uuid.New()
	assert.Equal(t, id, ActingUser(ContextWithUserID(context.Background(), id)))
}

func TestUserIDFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	_, ok, err := UserIDFromRequest(req)
	require.NoError(t, err)
	assert.False(t, ok)

	id := uuid.New()
	req.Header.Set(UserIDHeader, " "+id.String()+" ")
	got, ok, err := UserIDFromRequest(req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, got)

	req.Header.Set(UserIDHeader, "bogus")
	_, _, err = UserIDFromRequest(req)
	assert.Error(t, err)
}
