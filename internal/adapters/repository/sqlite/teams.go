package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okian/surgitrack/internal/adapters/repository"
	"github.com/okian/surgitrack/internal/domain/model"
)

// CreateTeam implements repository.Teams.
func (s *Store) CreateTeam(ctx context.Context, name string, creatorID int64) (_ model.Team, err error) {
	defer track("create_team")(&err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Team{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	team := model.Team{Name: name, CreatedAt: s.now().UTC()}
	res, err := tx.ExecContext(ctx, `INSERT INTO teams (name, created_at) VALUES (?, ?)`, team.Name, formatTime(team.CreatedAt))
	if err != nil {
		return model.Team{}, mapErr(err)
	}
	if team.ID, err = res.LastInsertId(); err != nil {
		return model.Team{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO team_members (team_id, user_id) VALUES (?, ?)`, team.ID, creatorID); err != nil {
		return model.Team{}, mapErr(err)
	}
	if err = tx.Commit(); err != nil {
		return model.Team{}, fmt.Errorf("commit: %w", err)
	}
	return team, nil
}

// AddMember implements repository.Teams.
func (s *Store) AddMember(ctx context.Context, teamID, userID int64) (err error) {
	defer track("add_member")(&err)

	if err = s.teamExists(ctx, teamID); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO team_members (team_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`, teamID, userID)
	return mapErr(err)
}

// TeamsByUser implements repository.Teams.
func (s *Store) TeamsByUser(ctx context.Context, userID int64) (_ []model.Team, err error) {
	defer track("teams_by_user")(&err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at
		FROM teams t JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = ?
		ORDER BY t.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teams := []model.Team{}
	for rows.Next() {
		var (
			t       model.Team
			created string
		)
		if err = rows.Scan(&t.ID, &t.Name, &created); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// TeamMembers implements repository.Teams.
func (s *Store) TeamMembers(ctx context.Context, teamID int64) (_ []int64, err error) {
	defer track("team_members")(&err)

	if err = s.teamExists(ctx, teamID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM team_members WHERE team_id = ? ORDER BY user_id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) teamExists(ctx context.Context, teamID int64) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM teams WHERE id = ?`, teamID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("team %d: %w", teamID, repository.ErrNotFound)
	}
	return err
}
