package service

import (
	"context"
	"strings"

	"github.com/okian/surgitrack/internal/domain/model"
	"github.com/okian/surgitrack/pkg/logger"
)

const maxTeamNameLength = 100

// CreateTeam creates a team with user as its first member. Taken names
// return ErrConflict.
func (s *Service) CreateTeam(ctx context.Context, user model.User, name string) (model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxTeamNameLength {
		return model.Team{}, invalid("team name must be 1 to 100 characters")
	}
	t, err := s.store.CreateTeam(ctx, name, user.ID)
	if err != nil {
		return model.Team{}, translate("team name", err)
	}
	s.logger.Info(ctx, "team created",
		logger.Int64("team_id", t.ID),
		logger.Int64("creator_id", user.ID),
	)
	return t, nil
}

// JoinTeam adds user to a team. Joining twice has no effect.
func (s *Service) JoinTeam(ctx context.Context, user model.User, teamID int64) error {
	if err := s.store.AddMember(ctx, teamID, user.ID); err != nil {
		return translate("team", err)
	}
	return nil
}

// ListMyTeams returns the teams user belongs to.
func (s *Service) ListMyTeams(ctx context.Context, user model.User) ([]model.Team, error) {
	teams, err := s.store.TeamsByUser(ctx, user.ID)
	if err != nil {
		return nil, translate("list teams", err)
	}
	return teams, nil
}
