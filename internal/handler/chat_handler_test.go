package handler

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/models"
	"github.com/lumenchat/lumen-go-api/internal/repository"
	"github.com/lumenchat/lumen-go-api/internal/service"
)

type sendTestEnv struct {
	app    *fiber.App
	groups service.GroupService
}

// newSendTestEnv wires the real chat and group services over sqlite behind
// a stub auth middleware that pins the caller identity.
func newSendTestEnv(t *testing.T, userID string) sendTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:send_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.DirectMessage{}, &models.Group{}, &models.GroupMessage{}))

	directRepo := repository.NewDirectMessageRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	groupMsgRepo := repository.NewGroupMessageRepository(db)

	validate := validator.New(validator.WithRequiredStructEnabled())
	encoder := service.NewAttachmentEncoder(zerolog.Nop())
	unread := service.NewUnreadCache(nil, "lumen", 0, zerolog.Nop())

	chatSvc := service.NewChatService(directRepo, groupRepo, groupMsgRepo, encoder, unread, nil, "", nil, validate, zerolog.Nop())
	groupSvc := service.NewGroupService(groupRepo, groupMsgRepo, encoder, chatSvc, validate, zerolog.Nop())

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})

	NewChatHandler(chatSvc, validate, zerolog.Nop()).Register(app.Group("/api/v1/chat"))
	NewGroupHandler(groupSvc, chatSvc, validate, zerolog.Nop()).Register(app.Group("/api/v1/groups"))

	return sendTestEnv{app: app, groups: groupSvc}
}

func (e sendTestEnv) postForm(t *testing.T, path, text string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("text", text))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestDirectSendAcceptsFormText(t *testing.T) {
	env := newSendTestEnv(t, "alice")

	resp := env.postForm(t, "/api/v1/chat/bob/messages", "hello bob")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestDirectSendRejectsOversizeFormText(t *testing.T) {
	env := newSendTestEnv(t, "alice")

	resp := env.postForm(t, "/api/v1/chat/bob/messages", strings.Repeat("a", 4001))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDirectSendAcceptsTextAtLimit(t *testing.T) {
	env := newSendTestEnv(t, "alice")

	resp := env.postForm(t, "/api/v1/chat/bob/messages", strings.Repeat("a", 4000))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestGroupSendAcceptsFormText(t *testing.T) {
	env := newSendTestEnv(t, "alice")

	group, err := env.groups.Create(context.Background(), "alice", dto.GroupCreateRequest{Members: []string{"bob"}})
	require.NoError(t, err)

	resp := env.postForm(t, fmt.Sprintf("/api/v1/groups/%d/messages", group.ID), "hello group")
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestGroupSendRejectsOversizeFormText(t *testing.T) {
	env := newSendTestEnv(t, "alice")

	group, err := env.groups.Create(context.Background(), "alice", dto.GroupCreateRequest{Members: []string{"bob"}})
	require.NoError(t, err)

	resp := env.postForm(t, fmt.Sprintf("/api/v1/groups/%d/messages", group.ID), strings.Repeat("a", 4001))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
