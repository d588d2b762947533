package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenchat/lumen-go-api/internal/chatid"
	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/models"
	"github.com/lumenchat/lumen-go-api/internal/observability"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

// ErrNotAMember indicates a group action attempted by someone outside the group.
var ErrNotAMember = errors.New("not a group member")

const defaultGroupName = "New Group"

// GroupFeed delivers updated group snapshots to feed subscribers after a write.
type GroupFeed interface {
	DeliverGroup(ctx context.Context, groupID uint)
}

// GroupService manages group conversations. Messages are stored one row per
// message, so concurrent senders can never overwrite each other's writes.
type GroupService interface {
	Create(ctx context.Context, creatorID string, payload dto.GroupCreateRequest) (dto.GroupResponse, error)
	ListVisible(ctx context.Context, userID string) ([]dto.GroupResponse, error)
	Send(ctx context.Context, senderID string, groupID uint, text string, replyToID *uint, attachment *AttachmentInput) (dto.GroupMessageResponse, error)
	History(ctx context.Context, userID string, groupID uint) (dto.GroupSnapshot, error)
}

type groupService struct {
	groups    repository.GroupRepository
	messages  repository.GroupMessageRepository
	encoder   AttachmentEncoder
	feed      GroupFeed
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewGroupService constructs a group service.
func NewGroupService(
	groups repository.GroupRepository,
	messages repository.GroupMessageRepository,
	encoder AttachmentEncoder,
	feed GroupFeed,
	validate *validator.Validate,
	logger zerolog.Logger,
) GroupService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	return &groupService{
		groups:    groups,
		messages:  messages,
		encoder:   encoder,
		feed:      feed,
		validator: validate,
		sanitizer: sanitizer,
		logger:    logger.With().Str("component", "group_service").Logger(),
		tracer:    otel.Tracer("github.com/lumenchat/lumen-go-api/internal/service/group"),
	}
}

func (s *groupService) Create(ctx context.Context, creatorID string, payload dto.GroupCreateRequest) (dto.GroupResponse, error) {
	if strings.TrimSpace(creatorID) == "" {
		return dto.GroupResponse{}, chatid.ErrUnauthenticated
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, err
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if name == "" {
		name = defaultGroupName
	}

	members := dedupeMembers(creatorID, payload.Members)
	encoded, err := json.Marshal(members)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	group := models.Group{
		Name:      name,
		CreatorID: creatorID,
		Members:   encoded,
	}

	if err := s.groups.Create(ctx, &group); err != nil {
		return dto.GroupResponse{}, err
	}

	s.logger.Info().Uint("group_id", group.ID).Int("members", len(members)).Msg("group created")

	return dto.NewGroupResponse(group), nil
}

func (s *groupService) ListVisible(ctx context.Context, userID string) ([]dto.GroupResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, chatid.ErrUnauthenticated
	}

	groups, err := s.groups.ListVisible(ctx, userID)
	if err != nil {
		return nil, err
	}

	return dto.NewGroupResponseSlice(groups), nil
}

func (s *groupService) Send(ctx context.Context, senderID string, groupID uint, text string, replyToID *uint, attachment *AttachmentInput) (dto.GroupMessageResponse, error) {
	if strings.TrimSpace(senderID) == "" {
		return dto.GroupMessageResponse{}, chatid.ErrUnauthenticated
	}

	member, err := s.groups.IsMember(ctx, groupID, senderID)
	if err != nil {
		return dto.GroupMessageResponse{}, err
	}
	if !member {
		return dto.GroupMessageResponse{}, ErrNotAMember
	}

	text = strings.TrimSpace(s.sanitizer.Sanitize(text))

	encoded := ""
	if attachment != nil {
		encoded, err = s.encoder.Encode(attachment.Name, attachment.Data)
		if err != nil {
			observability.AttachmentsEncoded().WithLabelValues("rejected").Inc()
			if text == "" {
				return dto.GroupMessageResponse{}, err
			}
			s.logger.Warn().Err(err).Uint("group_id", groupID).Msg("attachment dropped, sending text only")
			encoded = ""
		} else {
			observability.AttachmentsEncoded().WithLabelValues("ok").Inc()
		}
	}

	if text == "" && encoded == "" {
		return dto.GroupMessageResponse{}, ErrEmptyMessage
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send_group", trace.WithAttributes(
		attribute.Int64("group.id", int64(groupID)),
	))
	defer span.End()

	message := models.GroupMessage{
		GroupID:    groupID,
		SenderID:   senderID,
		Text:       text,
		Attachment: encoded,
		ReplyToID:  replyToID,
	}

	if err := s.appendWithRetry(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.GroupMessageResponse{}, err
	}

	observability.ChatMessagesSent().WithLabelValues("group").Inc()
	s.feed.DeliverGroup(spanCtx, groupID)

	return dto.NewGroupMessageResponse(message), nil
}

func (s *groupService) History(ctx context.Context, userID string, groupID uint) (dto.GroupSnapshot, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.GroupSnapshot{}, chatid.ErrUnauthenticated
	}

	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return dto.GroupSnapshot{}, err
	}
	if !member {
		return dto.GroupSnapshot{}, ErrNotAMember
	}

	messages, err := s.messages.ListByGroup(ctx, groupID)
	if err != nil {
		return dto.GroupSnapshot{}, err
	}

	return dto.GroupSnapshot{GroupID: groupID, Messages: dto.NewGroupMessageResponseSlice(messages)}, nil
}

func (s *groupService) appendWithRetry(ctx context.Context, message *models.GroupMessage) error {
	err := s.messages.Append(ctx, message)
	if err == nil {
		return nil
	}

	s.logger.Warn().Err(err).Uint("group_id", message.GroupID).Msg("append failed, retrying once")
	select {
	case <-time.After(writeRetryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.messages.Append(ctx, message)
}

// dedupeMembers ensures the creator is always a member and drops duplicates
// while preserving order.
func dedupeMembers(creatorID string, members []string) []string {
	seen := map[string]struct{}{creatorID: {}}
	out := []string{creatorID}
	for _, member := range members {
		member = strings.TrimSpace(member)
		if member == "" {
			continue
		}
		if _, dup := seen[member]; dup {
			continue
		}
		seen[member] = struct{}{}
		out = append(out, member)
	}
	return out
}
