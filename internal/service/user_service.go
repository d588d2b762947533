package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/lumenchat/lumen-go-api/internal/chatid"
	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/models"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

// FileStorage abstracts the avatar upload destination.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// Identity carries the profile fields asserted by the identity provider.
type Identity struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
}

// UserService mirrors identity-provider profiles and owns profile-local
// state (theme, avatar). Credentials never pass through here.
type UserService interface {
	Sync(ctx context.Context, identity Identity) (dto.UserResponse, error)
	UpdateTheme(ctx context.Context, userID string, payload dto.ThemeUpdateRequest) (dto.UserResponse, error)
	UpdatePhoto(ctx context.Context, userID string, file *multipart.FileHeader) (dto.UserResponse, error)
	Get(ctx context.Context, userID string) (dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	storage   FileStorage
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewUserService constructs a user service. Storage may be nil when avatar
// uploads are not configured.
func NewUserService(repo repository.UserRepository, storage FileStorage, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		storage:   storage,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

// Sync upserts the mirrored profile with merge semantics: only fields the
// provider actually asserted overwrite the stored row. Runs on every sign-in.
func (s *userService) Sync(ctx context.Context, identity Identity) (dto.UserResponse, error) {
	if strings.TrimSpace(identity.ID) == "" {
		return dto.UserResponse{}, chatid.ErrUnauthenticated
	}

	user := models.User{
		ID:       identity.ID,
		Name:     strings.TrimSpace(s.sanitizer.Sanitize(identity.Name)),
		Email:    strings.TrimSpace(identity.Email),
		PhotoURL: strings.TrimSpace(identity.PhotoURL),
	}

	if user.Name == "" {
		user.Name = "Unknown User"
	}

	if err := s.repo.Upsert(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	stored, err := s.repo.Get(ctx, identity.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(stored), nil
}

func (s *userService) UpdateTheme(ctx context.Context, userID string, payload dto.ThemeUpdateRequest) (dto.UserResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.UserResponse{}, chatid.ErrUnauthenticated
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.repo.UpdateTheme(ctx, userID, payload.Theme); err != nil {
		return dto.UserResponse{}, err
	}

	return s.Get(ctx, userID)
}

func (s *userService) UpdatePhoto(ctx context.Context, userID string, file *multipart.FileHeader) (dto.UserResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.UserResponse{}, chatid.ErrUnauthenticated
	}

	if s.storage == nil {
		return dto.UserResponse{}, ErrUnsupportedAttachment
	}

	source, err := file.Open()
	if err != nil {
		return dto.UserResponse{}, ErrUnsupportedAttachment
	}
	defer source.Close()

	data, err := io.ReadAll(source)
	if err != nil {
		return dto.UserResponse{}, ErrUnsupportedAttachment
	}

	if kind := mimetype.Detect(data); !strings.HasPrefix(kind.String(), "image/") {
		return dto.UserResponse{}, ErrUnsupportedAttachment
	}

	url, err := s.storage.Upload(ctx, file.Filename, bytes.NewReader(data))
	if err != nil {
		return dto.UserResponse{}, err
	}

	if err := s.repo.UpdatePhotoURL(ctx, userID, url); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("user_id", userID).Msg("avatar updated")

	return s.Get(ctx, userID)
}

func (s *userService) Get(ctx context.Context, userID string) (dto.UserResponse, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}
