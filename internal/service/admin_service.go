package service

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

// AdminService serves the moderation surface: listing everything and
// deleting users or individual messages. Deleting a user cascades to every
// message they authored, direct and group, system-wide.
type AdminService interface {
	ListUsers(ctx context.Context) ([]dto.UserResponse, error)
	ListMessages(ctx context.Context, limit int) ([]dto.DirectMessageResponse, error)
	DeleteMessage(ctx context.Context, id uint) error
	DeleteUser(ctx context.Context, userID string) error
}

type adminService struct {
	users     repository.UserRepository
	direct    repository.DirectMessageRepository
	groupMsgs repository.GroupMessageRepository
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewAdminService constructs an admin service.
func NewAdminService(
	users repository.UserRepository,
	direct repository.DirectMessageRepository,
	groupMsgs repository.GroupMessageRepository,
	logger zerolog.Logger,
) AdminService {
	return &adminService{
		users:     users,
		direct:    direct,
		groupMsgs: groupMsgs,
		logger:    logger.With().Str("component", "admin_service").Logger(),
		tracer:    otel.Tracer("github.com/lumenchat/lumen-go-api/internal/service/admin"),
	}
}

func (s *adminService) ListUsers(ctx context.Context) ([]dto.UserResponse, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *adminService) ListMessages(ctx context.Context, limit int) ([]dto.DirectMessageResponse, error) {
	messages, err := s.direct.ListAll(ctx, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewDirectMessageResponseSlice(messages), nil
}

func (s *adminService) DeleteMessage(ctx context.Context, id uint) error {
	spanCtx, span := s.tracer.Start(ctx, "admin.delete_message", trace.WithAttributes(
		attribute.Int64("message.id", int64(id)),
	))
	defer span.End()

	if err := s.direct.Delete(spanCtx, id); err != nil {
		span.RecordError(err)
		return err
	}

	s.logger.Info().Uint("message_id", id).Msg("message deleted by admin")
	return nil
}

// DeleteUser removes the mirrored profile and cascades to every message the
// user sent. The cascade runs before the profile delete so a partial failure
// leaves the user visible rather than orphaning their messages.
func (s *adminService) DeleteUser(ctx context.Context, userID string) error {
	spanCtx, span := s.tracer.Start(ctx, "admin.delete_user", trace.WithAttributes(
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := s.direct.DeleteBySender(spanCtx, userID); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.groupMsgs.DeleteBySender(spanCtx, userID); err != nil {
		span.RecordError(err)
		return err
	}

	if err := s.users.Delete(spanCtx, userID); err != nil {
		span.RecordError(err)
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("user and authored messages deleted by admin")
	return nil
}
