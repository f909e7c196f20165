package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/internal/identity/domain"
	"github.com/smallbiznis/queueline/internal/identity/password"
	"github.com/smallbiznis/queueline/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  domain.Repository
	GenID *snowflake.Node
}

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("identity.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, domain.ErrInvalidUsername
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidPassword
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, domain.ErrInvalidFullName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	return s.create(ctx, &domain.User{
		Username:    username,
		FullName:    fullName,
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Email:       email,
		Role:        domain.RoleUser,
	}, req.Password)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		s.log.Info("login rejected", zap.String("user_id", user.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	if id <= 0 {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) ListByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]*domain.User, error) {
	unique := make([]snowflake.ID, 0, len(ids))
	seen := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	users, err := s.repo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, err
	}

	out := make(map[snowflake.ID]*domain.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Service) CountNonAdmin(ctx context.Context) (int64, error) {
	return s.repo.CountExcludingRole(ctx, domain.RoleAdmin)
}

// EnsureAdmin creates the administrator account when it does not exist yet.
// An existing account is returned untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, rawPassword string) (*domain.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, false, domain.ErrInvalidUsername
	}
	if strings.TrimSpace(rawPassword) == "" {
		return nil, false, domain.ErrInvalidPassword
	}

	existing, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin() {
			s.log.Warn("bootstrap admin username taken by non-admin account", zap.String("username", username))
		}
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	user, err := s.create(ctx, &domain.User{
		Username: username,
		FullName: "Administrator",
		Role:     domain.RoleAdmin,
	}, rawPassword)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			existing, findErr := s.repo.FindByUsername(ctx, username)
			return existing, false, findErr
		}
		return nil, false, err
	}

	s.log.Info("bootstrap admin created", zap.String("user_id", user.ID.String()))
	return user, true, nil
}

func (s *Service) create(ctx context.Context, user *domain.User, rawPassword string) (*domain.User, error) {
	if _, err := s.repo.FindByUsername(ctx, user.Username); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return nil, err
	}

	user.ID = s.genID.Generate()
	user.PasswordHash = hashed
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
