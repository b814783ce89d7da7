package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"certquiz-service/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // driver: sqlite
)

const schema = `
CREATE TABLE IF NOT EXISTS certificates (
  id           TEXT PRIMARY KEY,
  user_id      TEXT NOT NULL,
  user_name    TEXT NOT NULL,
  topic        TEXT NOT NULL,
  channel_name TEXT NOT NULL DEFAULT '',
  video_url    TEXT NOT NULL,
  score        INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
  questions    TEXT,
  user_answers TEXT,
  issued_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS certificates_user_issued_idx ON certificates (user_id, issued_at DESC, id);
`

// CertificateStore keeps certificates in a local SQLite file, for single-node
// deployments that do not run Postgres.
type CertificateStore struct {
	db    *sql.DB
	clock func() time.Time
	newID func() string
}

// Open opens (or creates) the database at dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*CertificateStore, error) {
	if dsn == "" {
		dsn = "file:certquiz.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &CertificateStore{db: db, clock: time.Now, newID: uuid.NewString}, nil
}

func (s *CertificateStore) Close() error {
	return s.db.Close()
}

const certificateColumns = `id, user_id, user_name, topic, channel_name, video_url, score, questions, user_answers, issued_at`

func (s *CertificateStore) Issue(ctx context.Context, draft domain.CertificateDraft) (domain.Certificate, error) {
	cert := domain.CloneCertificate(domain.Certificate{
		ID:          s.newID(),
		UserID:      draft.UserID,
		UserName:    draft.UserName,
		Topic:       draft.Topic,
		ChannelName: draft.ChannelName,
		VideoURL:    draft.VideoURL,
		Score:       draft.Score,
		Questions:   draft.Questions,
		UserAnswers: draft.UserAnswers,
		// Stored with millisecond precision; truncate so the returned value
		// matches what a later read yields.
		IssuedAt: s.clock().UTC().Truncate(time.Millisecond),
	})

	questions, err := encodeJSON(cert.Questions, len(cert.Questions) > 0)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("encode questions: %w", err)
	}
	answers, err := encodeJSON(cert.UserAnswers, len(cert.UserAnswers) > 0)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO certificates (`+certificateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cert.ID, cert.UserID, cert.UserName, cert.Topic, cert.ChannelName, cert.VideoURL,
		cert.Score, questions, answers, cert.IssuedAt.UnixMilli(),
	)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("%w: insert certificate: %v", domain.ErrStoreUnavailable, err)
	}
	return cert, nil
}

func (s *CertificateStore) GetByID(ctx context.Context, id string) (domain.Certificate, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = ?`, id)
	cert, err := scanCertificate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Certificate{}, false, nil
	}
	if err != nil {
		return domain.Certificate{}, false, fmt.Errorf("%w: load certificate: %v", domain.ErrStoreUnavailable, err)
	}
	return cert, true, nil
}

func (s *CertificateStore) ListByUser(ctx context.Context, userID string) ([]domain.Certificate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+certificateColumns+`
		FROM certificates
		WHERE user_id = ?
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

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificate(row scanner) (domain.Certificate, error) {
	var (
		cert      domain.Certificate
		questions sql.NullString
		answers   sql.NullString
		issuedAt  int64
	)
	err := row.Scan(&cert.ID, &cert.UserID, &cert.UserName, &cert.Topic, &cert.ChannelName,
		&cert.VideoURL, &cert.Score, &questions, &answers, &issuedAt)
	if err != nil {
		return domain.Certificate{}, err
	}
	if questions.Valid && questions.String != "" {
		if err := json.Unmarshal([]byte(questions.String), &cert.Questions); err != nil {
			return domain.Certificate{}, fmt.Errorf("decode questions: %w", err)
		}
	}
	if answers.Valid && answers.String != "" {
		if err := json.Unmarshal([]byte(answers.String), &cert.UserAnswers); err != nil {
			return domain.Certificate{}, fmt.Errorf("decode answers: %w", err)
		}
	}
	cert.IssuedAt = time.UnixMilli(issuedAt).UTC()
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
