package sqlite

import (
	"context"

	"github.com/okian/surgitrack/internal/domain/model"
)

// CreateVideo implements repository.Videos.
func (s *Store) CreateVideo(ctx context.Context, v model.Video) (_ model.Video, err error) {
	defer track("create_video")(&err)

	v.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (attempt_id, storage_url, size_bytes, content_type, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		v.AttemptID, v.StorageURL, v.SizeBytes, v.ContentType, formatTime(v.CreatedAt))
	if err != nil {
		return model.Video{}, mapErr(err)
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return model.Video{}, err
	}
	return v, nil
}

// VideosByAttempt implements repository.Videos.
func (s *Store) VideosByAttempt(ctx context.Context, attemptID int64) (_ []model.Video, err error) {
	defer track("videos_by_attempt")(&err)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attempt_id, storage_url, size_bytes, content_type, created_at
		FROM videos WHERE attempt_id = ? ORDER BY id`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	videos := []model.Video{}
	for rows.Next() {
		var (
			v       model.Video
			created string
		)
		if err := rows.Scan(&v.ID, &v.AttemptID, &v.StorageURL, &v.SizeBytes, &v.ContentType, &created); err != nil {
			return nil, err
		}
		if v.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}
