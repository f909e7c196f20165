package queue

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/internal/cache"
	identitydomain "github.com/smallbiznis/queueline/internal/identity/domain"
	"github.com/smallbiznis/queueline/internal/queue/domain"
)

// identityStore exposes the account service to the queue through the narrow
// IdentityStore view. Display fields are served from the profile cache.
type identityStore struct {
	users    identitydomain.Service
	profiles cache.ProfileCache
}

func NewIdentityStore(users identitydomain.Service, profiles cache.ProfileCache) domain.IdentityStore {
	return &identityStore{users: users, profiles: profiles}
}

func (s *identityStore) Resolve(ctx context.Context, userID snowflake.ID) (domain.Identity, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identitydomain.ErrUserNotFound) {
			return domain.Identity{UserID: userID}, nil
		}
		return domain.Identity{}, err
	}
	s.remember(user)
	return domain.Identity{
		UserID: user.ID,
		Exists: true,
		Role:   user.Role,
	}, nil
}

func (s *identityStore) DisplayName(ctx context.Context, userID snowflake.ID) (string, error) {
	if profile, ok := s.profiles.GetProfile(userID); ok {
		return profile.FullName, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identitydomain.ErrUserNotFound) {
			return "", nil
		}
		return "", err
	}
	s.remember(user)
	return user.FullName, nil
}

func (s *identityStore) Profiles(ctx context.Context, userIDs []snowflake.ID) (map[snowflake.ID]domain.Profile, error) {
	out := make(map[snowflake.ID]domain.Profile, len(userIDs))
	missing := make([]snowflake.ID, 0, len(userIDs))
	for _, id := range userIDs {
		if profile, ok := s.profiles.GetProfile(id); ok {
			out[id] = profile
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	users, err := s.users.ListByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, user := range users {
		out[id] = s.remember(user)
	}
	return out, nil
}

func (s *identityStore) CountNonAdmin(ctx context.Context) (int64, error) {
	return s.users.CountNonAdmin(ctx)
}

func (s *identityStore) remember(user *identitydomain.User) domain.Profile {
	profile := domain.Profile{
		FullName:    user.FullName,
		PhoneNumber: user.PhoneNumber,
	}
	s.profiles.SetProfile(user.ID, profile)
	return profile
}
