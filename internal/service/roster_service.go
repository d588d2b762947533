package service

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenchat/lumen-go-api/internal/chatid"
	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

// RosterService builds the home view: every known user other than self with
// the unread count of the direct conversation, plus the visible groups.
type RosterService interface {
	Roster(ctx context.Context, selfID string, query dto.RosterQuery) ([]dto.RosterEntry, error)
	Groups(ctx context.Context, selfID string) ([]dto.GroupResponse, error)
}

type rosterService struct {
	users    repository.UserRepository
	messages repository.DirectMessageRepository
	groups   repository.GroupRepository
	unread   *UnreadCache
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewRosterService constructs a roster service.
func NewRosterService(
	users repository.UserRepository,
	messages repository.DirectMessageRepository,
	groups repository.GroupRepository,
	unread *UnreadCache,
	logger zerolog.Logger,
) RosterService {
	return &rosterService{
		users:    users,
		messages: messages,
		groups:   groups,
		unread:   unread,
		logger:   logger.With().Str("component", "roster_service").Logger(),
		tracer:   otel.Tracer("github.com/lumenchat/lumen-go-api/internal/service/roster"),
	}
}

func (s *rosterService) Roster(ctx context.Context, selfID string, query dto.RosterQuery) ([]dto.RosterEntry, error) {
	if strings.TrimSpace(selfID) == "" {
		return nil, chatid.ErrUnauthenticated
	}

	spanCtx, span := s.tracer.Start(ctx, "roster.list", trace.WithAttributes(
		attribute.String("roster.sort_by", query.SortBy),
	))
	defer span.End()

	users, err := s.users.List(spanCtx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	entries := make([]dto.RosterEntry, 0, len(users))
	for _, user := range users {
		if user.ID == selfID {
			continue
		}

		count, err := s.unreadFrom(spanCtx, selfID, user.ID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}

		entries = append(entries, dto.RosterEntry{
			User:        dto.NewUserResponse(user),
			UnreadCount: count,
		})
	}

	sortRoster(entries, query)

	return entries, nil
}

func (s *rosterService) Groups(ctx context.Context, selfID string) ([]dto.GroupResponse, error) {
	if strings.TrimSpace(selfID) == "" {
		return nil, chatid.ErrUnauthenticated
	}

	groups, err := s.groups.ListVisible(ctx, selfID)
	if err != nil {
		return nil, err
	}

	return dto.NewGroupResponseSlice(groups), nil
}

func (s *rosterService) unreadFrom(ctx context.Context, selfID, peerID string) (int64, error) {
	if count, ok := s.unread.Get(ctx, selfID, peerID); ok {
		return count, nil
	}

	chatID, err := chatid.Direct(selfID, peerID)
	if err != nil {
		return 0, err
	}

	count, err := s.messages.CountUnread(ctx, chatID, selfID)
	if err != nil {
		return 0, err
	}

	s.unread.Set(ctx, selfID, peerID, count)
	return count, nil
}

// sortRoster orders entries by display name or unread count. The sort is
// stable, so ties keep their original fetch order.
func sortRoster(entries []dto.RosterEntry, query dto.RosterQuery) {
	descending := query.Order == "desc"

	switch query.SortBy {
	case "unread":
		sort.SliceStable(entries, func(i, j int) bool {
			if descending {
				return entries[i].UnreadCount > entries[j].UnreadCount
			}
			return entries[i].UnreadCount < entries[j].UnreadCount
		})
	case "name", "":
		sort.SliceStable(entries, func(i, j int) bool {
			if descending {
				return entries[i].User.Name > entries[j].User.Name
			}
			return entries[i].User.Name < entries[j].User.Name
		})
	}
}
