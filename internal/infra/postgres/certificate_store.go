package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"certquiz-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// CertificateStore persists certificates in the certificates table. The
// database assigns id and issued_at.
type CertificateStore struct {
	pool *pgxpool.Pool
}

func NewCertificateStore(pool *pgxpool.Pool) *CertificateStore {
	return &CertificateStore{pool: pool}
}

const certificateColumns = `id::text, user_id, user_name, topic, COALESCE(channel_name, ''), video_url, score, questions, user_answers, issued_at`

func (s *CertificateStore) Issue(ctx context.Context, draft domain.CertificateDraft) (domain.Certificate, error) {
	questions, err := encodeJSON(draft.Questions, len(draft.Questions) > 0)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("encode questions: %w", err)
	}
	answers, err := encodeJSON(draft.UserAnswers, len(draft.UserAnswers) > 0)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("encode answers: %w", err)
	}
	var channel interface{}
	if draft.ChannelName != "" {
		channel = draft.ChannelName
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO certificates (user_id, user_name, topic, channel_name, video_url, score, questions, user_answers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+certificateColumns,
		draft.UserID, draft.UserName, draft.Topic, channel, draft.VideoURL, draft.Score, questions, answers,
	)
	cert, err := scanCertificate(row)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("%w: insert certificate: %v", domain.ErrStoreUnavailable, err)
	}
	return cert, nil
}

func (s *CertificateStore) GetByID(ctx context.Context, id string) (domain.Certificate, bool, error) {
	// Only canonical UUID text can match a stored id exactly.
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return domain.Certificate{}, false, nil
	}

	row := s.pool.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id)
	cert, err := scanCertificate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Certificate{}, false, nil
	}
	if err != nil {
		return domain.Certificate{}, false, fmt.Errorf("%w: load certificate: %v", domain.ErrStoreUnavailable, err)
	}
	return cert, true, nil
}

func (s *CertificateStore) ListByUser(ctx context.Context, userID string) ([]domain.Certificate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+certificateColumns+`
		FROM certificates
		WHERE user_id = $1
		ORDER BY issued_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list certificates: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	certs := make([]domain.Certificate, 0)
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan certificate: %v", domain.ErrStoreUnavailable, err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list certificates: %v", domain.ErrStoreUnavailable, err)
	}
	return certs, nil
}

func scanCertificate(row pgx.Row) (domain.Certificate, error) {
	var (
		cert      domain.Certificate
		questions []byte
		answers   []byte
	)
	err := row.Scan(&cert.ID, &cert.UserID, &cert.UserName, &cert.Topic, &cert.ChannelName,
		&cert.VideoURL, &cert.Score, &questions, &answers, &cert.IssuedAt)
	if err != nil {
		return domain.Certificate{}, err
	}
	// Older rows have no answer key; that is not an error.
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &cert.Questions); err != nil {
			return domain.Certificate{}, fmt.Errorf("decode questions: %w", err)
		}
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &cert.UserAnswers); err != nil {
			return domain.Certificate{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	cert.IssuedAt = cert.IssuedAt.UTC()
	return cert, nil
}

func encodeJSON(v interface{}, present bool) (interface{}, error) {
	if !present {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}
