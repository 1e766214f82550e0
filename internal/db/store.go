package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shreyas21A/ConfidenceVoice/internal/domain"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS emotion_results (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			confident_percentage DOUBLE PRECISION NOT NULL,
			visual_confidence DOUBLE PRECISION NOT NULL,
			verbal_confidence DOUBLE PRECISION NOT NULL,
			overall_confidence DOUBLE PRECISION NOT NULL,
			transcribed_speech TEXT NOT NULL,
			filler_words TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_emotion_results_user_ts ON emotion_results(user_id, timestamp DESC);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// InsertEmotionResult persists one finished analysis. Callers treat failures
// as log-only; the HTTP response is never gated on this write.
func (s *Store) InsertEmotionResult(ctx context.Context, userID, sessionID string, result domain.ConfidenceResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO emotion_results(
			user_id, session_id, confident_percentage, visual_confidence,
			verbal_confidence, overall_confidence, transcribed_speech, filler_words
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, userID, sessionID,
		result.ConfidentPercentage, result.VisualConfidence,
		result.VerbalConfidence, result.OverallConfidence,
		result.TranscribedSpeech, result.FillerWords)
	return err
}

func (s *Store) ListEmotionResults(ctx context.Context, userID string, limit int) ([]domain.StoredResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, session_id, confident_percentage, visual_confidence,
		       verbal_confidence, overall_confidence, transcribed_speech, filler_words, timestamp
		FROM emotion_results
		WHERE user_id=$1
		ORDER BY timestamp DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.StoredResult, 0, limit)
	for rows.Next() {
		var item domain.StoredResult
		var ts time.Time
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.SessionID,
			&item.ConfidentPercentage, &item.VisualConfidence,
			&item.VerbalConfidence, &item.OverallConfidence,
			&item.TranscribedSpeech, &item.FillerWords, &ts,
		); err != nil {
			return nil, err
		}
		item.Timestamp = ts.UTC()
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
