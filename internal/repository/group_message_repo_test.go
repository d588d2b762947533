package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lumenchat/lumen-go-api/internal/models"
)

func TestGroupMessageListByGroupOrders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGroupMessageRepository(db)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		message := models.GroupMessage{GroupID: 1, SenderID: "alice", Text: text}
		require.NoError(t, repo.Append(ctx, &message))
	}
	other := models.GroupMessage{GroupID: 2, SenderID: "bob", Text: "elsewhere"}
	require.NoError(t, repo.Append(ctx, &other))

	messages, err := repo.ListByGroup(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, "first", messages[0].Text)
	require.Equal(t, "third", messages[2].Text)
}

// Two clients appending at the same moment must both end up in the
// conversation: each message is its own row, so neither write can clobber
// the other.
func TestGroupMessageConcurrentAppendsBothRetained(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGroupMessageRepository(db)
	ctx := context.Background()

	seed := models.GroupMessage{GroupID: 7, SenderID: "alice", Text: "seed"}
	require.NoError(t, repo.Append(ctx, &seed))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	texts := []string{"from bob", "from carol"}
	senders := []string{"bob", "carol"}

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			message := models.GroupMessage{GroupID: 7, SenderID: senders[i], Text: texts[i]}
			errs[i] = repo.Append(ctx, &message)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	messages, err := repo.ListByGroup(ctx, 7)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	seen := map[string]bool{}
	for _, message := range messages {
		seen[message.Text] = true
	}
	require.True(t, seen["from bob"])
	require.True(t, seen["from carol"])
}

func TestGroupMessageDeleteBySender(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGroupMessageRepository(db)
	ctx := context.Background()

	mine := models.GroupMessage{GroupID: 1, SenderID: "alice", Text: "mine"}
	theirs := models.GroupMessage{GroupID: 1, SenderID: "bob", Text: "theirs"}
	require.NoError(t, repo.Append(ctx, &mine))
	require.NoError(t, repo.Append(ctx, &theirs))

	require.NoError(t, repo.DeleteBySender(ctx, "alice"))

	messages, err := repo.ListByGroup(ctx, 1)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, "bob", messages[0].SenderID)
}
