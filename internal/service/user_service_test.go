package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lumenchat/lumen-go-api/internal/chatid"
	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

func newTestUserService(t *testing.T) UserService {
	t.Helper()
	db := setupServiceDB(t)
	return NewUserService(repository.NewUserRepository(db), nil, newTestValidator(), zerolog.Nop())
}

func TestUserSyncCreatesAndMerges(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	created, err := svc.Sync(ctx, Identity{ID: "alice", Name: "Alice", Email: "alice@example.com", PhotoURL: "https://cdn/a.png"})
	require.NoError(t, err)
	require.Equal(t, "Alice", created.Name)
	require.Equal(t, "love", created.Theme, "new profiles get the default theme")

	// A later sign-in asserting only a name keeps the rest of the profile.
	updated, err := svc.Sync(ctx, Identity{ID: "alice", Name: "Alice Cooper"})
	require.NoError(t, err)
	require.Equal(t, "Alice Cooper", updated.Name)
	require.Equal(t, "alice@example.com", updated.Email)
	require.Equal(t, "https://cdn/a.png", updated.PhotoURL)
}

func TestUserSyncSanitizesName(t *testing.T) {
	svc := newTestUserService(t)

	resp, err := svc.Sync(context.Background(), Identity{ID: "alice", Name: "<b>Alice</b><script>x()</script>"})
	require.NoError(t, err)
	require.Equal(t, "Alice", resp.Name)
}

func TestUserSyncDefaultsBlankName(t *testing.T) {
	svc := newTestUserService(t)

	resp, err := svc.Sync(context.Background(), Identity{ID: "alice"})
	require.NoError(t, err)
	require.Equal(t, "Unknown User", resp.Name)
}

func TestUserSyncRequiresID(t *testing.T) {
	svc := newTestUserService(t)

	_, err := svc.Sync(context.Background(), Identity{Name: "Nobody"})
	require.ErrorIs(t, err, chatid.ErrUnauthenticated)
}

func TestUserUpdateTheme(t *testing.T) {
	svc := newTestUserService(t)
	ctx := context.Background()

	_, err := svc.Sync(ctx, Identity{ID: "alice", Name: "Alice"})
	require.NoError(t, err)

	resp, err := svc.UpdateTheme(ctx, "alice", dto.ThemeUpdateRequest{Theme: "ocean"})
	require.NoError(t, err)
	require.Equal(t, "ocean", resp.Theme)

	_, err = svc.UpdateTheme(ctx, "alice", dto.ThemeUpdateRequest{Theme: "neon"})
	require.Error(t, err, "unknown themes are rejected")
}
