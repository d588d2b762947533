package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lumenchat/lumen-go-api/internal/models"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

type adminFixture struct {
	svc       AdminService
	users     repository.UserRepository
	direct    repository.DirectMessageRepository
	groupMsgs repository.GroupMessageRepository
}

func newAdminFixture(t *testing.T) adminFixture {
	t.Helper()

	db := setupServiceDB(t)
	users := repository.NewUserRepository(db)
	direct := repository.NewDirectMessageRepository(db)
	groupMsgs := repository.NewGroupMessageRepository(db)
	return adminFixture{
		svc:       NewAdminService(users, direct, groupMsgs, zerolog.Nop()),
		users:     users,
		direct:    direct,
		groupMsgs: groupMsgs,
	}
}

func TestAdminDeleteUserCascades(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.Upsert(ctx, &models.User{ID: "alice", Name: "Alice"}))
	require.NoError(t, f.users.Upsert(ctx, &models.User{ID: "bob", Name: "Bob"}))

	sent := models.DirectMessage{ChatID: "alice_bob", SenderID: "alice", ReceiverID: "bob", Text: "from alice"}
	received := models.DirectMessage{ChatID: "alice_bob", SenderID: "bob", ReceiverID: "alice", Text: "from bob"}
	require.NoError(t, f.direct.Append(ctx, &sent))
	require.NoError(t, f.direct.Append(ctx, &received))

	groupMsg := models.GroupMessage{GroupID: 1, SenderID: "alice", Text: "group msg"}
	require.NoError(t, f.groupMsgs.Append(ctx, &groupMsg))

	require.NoError(t, f.svc.DeleteUser(ctx, "alice"))

	_, err := f.users.Get(ctx, "alice")
	require.Error(t, err, "the profile row is gone")

	messages, err := f.direct.ListByChat(ctx, "alice_bob")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "bob", messages[0].SenderID, "messages the user authored are gone, inbound ones remain")

	groupMessages, err := f.groupMsgs.ListByGroup(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, groupMessages)
}

func TestAdminDeleteMessage(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	message := models.DirectMessage{ChatID: "alice_bob", SenderID: "alice", ReceiverID: "bob", Text: "oops"}
	require.NoError(t, f.direct.Append(ctx, &message))

	require.NoError(t, f.svc.DeleteMessage(ctx, message.ID))

	messages, err := f.direct.ListByChat(ctx, "alice_bob")
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestAdminListMessagesNewestFirst(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		message := models.DirectMessage{ChatID: "alice_bob", SenderID: "alice", ReceiverID: "bob", Text: text}
		require.NoError(t, f.direct.Append(ctx, &message))
	}

	messages, err := f.svc.ListMessages(ctx, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "three", messages[0].Text)
}
