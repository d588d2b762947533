package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lumenchat/lumen-go-api/internal/chatid"
	"github.com/lumenchat/lumen-go-api/internal/models"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

func newTestChatService(t *testing.T) (ChatService, repository.DirectMessageRepository) {
	t.Helper()

	db := setupServiceDB(t)
	directRepo := repository.NewDirectMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupMsgRepo := repository.NewGroupMessageRepository(db)
	unread := NewUnreadCache(nil, "lumen", 0, zerolog.Nop())
	encoder := NewAttachmentEncoder(zerolog.Nop())

	svc := NewChatService(directRepo, groupRepo, groupMsgRepo, encoder, unread, nil, "", nil, newTestValidator(), zerolog.Nop())
	return svc, directRepo
}

func TestSendDirectPersistsAndDerivesChatID(t *testing.T) {
	svc, repo := newTestChatService(t)
	ctx := context.Background()

	resp, err := svc.SendDirect(ctx, "u2", "u1", "hello there", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "u1_u2", resp.ChatID)
	require.Equal(t, "u2", resp.SenderID)
	require.Equal(t, "u1", resp.ReceiverID)
	require.False(t, resp.IsRead)

	messages, err := repo.ListByChat(ctx, "u1_u2")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "hello there", messages[0].Text)
}

func TestSendDirectSanitizesMarkup(t *testing.T) {
	svc, _ := newTestChatService(t)

	resp, err := svc.SendDirect(context.Background(), "alice", "bob", "<script>alert(1)</script>hi", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "hi", resp.Text)
}

func TestSendDirectRejectsEmptyAndUnauthenticated(t *testing.T) {
	svc, _ := newTestChatService(t)
	ctx := context.Background()

	_, err := svc.SendDirect(ctx, "alice", "bob", "   ", nil, nil)
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendDirect(ctx, "", "bob", "hi", nil, nil)
	require.ErrorIs(t, err, chatid.ErrUnauthenticated)

	_, err = svc.SendDirect(ctx, "alice", "alice", "hi", nil, nil)
	require.ErrorIs(t, err, chatid.ErrInvalidParticipant)
}

func TestSendDirectDropsBadAttachmentWhenTextPresent(t *testing.T) {
	svc, repo := newTestChatService(t)
	ctx := context.Background()

	attachment := &AttachmentInput{Name: "doc.txt", Data: []byte("not an image")}
	resp, err := svc.SendDirect(ctx, "alice", "bob", "look at this", nil, attachment)
	require.NoError(t, err)
	require.Empty(t, resp.Attachment)

	// Without text the unusable attachment fails the whole send.
	_, err = svc.SendDirect(ctx, "alice", "bob", "", nil, attachment)
	require.ErrorIs(t, err, ErrUnsupportedAttachment)

	messages, err := repo.ListByChat(ctx, "alice_bob")
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestHistoryMarksRequesterMessagesRead(t *testing.T) {
	svc, repo := newTestChatService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		message := models.DirectMessage{ChatID: "alice_bob", SenderID: "alice", ReceiverID: "bob", Text: "hi"}
		require.NoError(t, repo.Append(ctx, &message))
	}
	outbound := models.DirectMessage{ChatID: "alice_bob", SenderID: "bob", ReceiverID: "alice", Text: "yo"}
	require.NoError(t, repo.Append(ctx, &outbound))

	snapshot, err := svc.History(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, "alice_bob", snapshot.ChatID)
	require.Len(t, snapshot.Messages, 3)

	for _, message := range snapshot.Messages {
		if message.ReceiverID == "bob" {
			require.True(t, message.IsRead, "opening the conversation marks inbound messages read")
		} else {
			require.False(t, message.IsRead, "the requester's own sends stay untouched")
		}
	}

	count, err := repo.CountUnread(ctx, "alice_bob", "bob")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestHistoryIsIdempotent(t *testing.T) {
	svc, repo := newTestChatService(t)
	ctx := context.Background()

	message := models.DirectMessage{ChatID: "alice_bob", SenderID: "alice", ReceiverID: "bob", Text: "hi"}
	require.NoError(t, repo.Append(ctx, &message))

	first, err := svc.History(ctx, "bob", "alice")
	require.NoError(t, err)
	second, err := svc.History(ctx, "bob", "alice")
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestHistoryRejectsInvalidPeer(t *testing.T) {
	svc, _ := newTestChatService(t)

	_, err := svc.History(context.Background(), "bob", "")
	require.ErrorIs(t, err, chatid.ErrInvalidParticipant)

	_, err = svc.History(context.Background(), "", "alice")
	require.ErrorIs(t, err, chatid.ErrUnauthenticated)
}
