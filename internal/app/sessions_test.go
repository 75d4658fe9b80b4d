package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/shrimpsizemoose/labsync/internal/models"
)

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	require.NoError(t, err)
	b, err := generateToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, len(tokenPrefix)+2*tokenByteCount)
}

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemorySessions(time.Hour)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	session, err := sessions.Create(ctx, "ana@alum.up.edu.pe", models.RoleStudent)
	require.NoError(t, err)

	found, err := sessions.Lookup(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "ana@alum.up.edu.pe", found.Email)
	assert.Equal(t, models.RoleStudent, found.Role)

	now = now.Add(2 * time.Hour)
	_, err = sessions.Lookup(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session, err = sessions.Create(ctx, "ana@alum.up.edu.pe", models.RoleStudent)
	require.NoError(t, err)
	require.NoError(t, sessions.Revoke(ctx, session.Token))
	_, err = sessions.Lookup(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionsDropExpiredOnCreate(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemorySessions(time.Hour)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	sessions.now = func() time.Time { return now }

	for _, email := range []string{"a@alum.up.edu.pe", "b@alum.up.edu.pe"} {
		_, err := sessions.Create(ctx, email, models.RoleStudent)
		require.NoError(t, err)
	}
	now = now.Add(30 * time.Minute)
	recent, err := sessions.Create(ctx, "c@alum.up.edu.pe", models.RoleStudent)
	require.NoError(t, err)
	assert.Len(t, sessions.sessions, 3)

	now = now.Add(45 * time.Minute)
	_, err = sessions.Create(ctx, "d@alum.up.edu.pe", models.RoleStudent)
	require.NoError(t, err)
	assert.Len(t, sessions.sessions, 2)

	found, err := sessions.Lookup(ctx, recent.Token)
	require.NoError(t, err)
	assert.Equal(t, "c@alum.up.edu.pe", found.Email)
}

func TestRedisSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	defer container.Terminate(ctx)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	sessions, err := NewRedisSessions(ctx, url, time.Minute)
	require.NoError(t, err)
	defer sessions.Close()

	session, err := sessions.Create(ctx, "admin@up.edu.pe", models.RoleAdmin)
	require.NoError(t, err)

	found, err := sessions.Lookup(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin@up.edu.pe", found.Email)
	assert.Equal(t, models.RoleAdmin, found.Role)
	assert.WithinDuration(t, session.CreatedAt, found.CreatedAt, time.Second)

	ttl, err := sessions.redis.TTL(ctx, "session:"+session.Token).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, sessions.Revoke(ctx, session.Token))
	_, err = sessions.Lookup(ctx, session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
