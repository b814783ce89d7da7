package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"certquiz-service/internal/domain"
	"github.com/google/uuid"
)

// CertificateStore is the in-memory reference implementation of
// app.CertificateStore (useful for tests/demos).
type CertificateStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.Certificate
	clock func() time.Time
	newID func() string
}

func NewCertificateStore() *CertificateStore {
	return NewCertificateStoreWithClock(time.Now)
}

// NewCertificateStoreWithClock allows deterministic issue times in tests.
func NewCertificateStoreWithClock(now func() time.Time) *CertificateStore {
	return &CertificateStore{
		byID:  make(map[string]domain.Certificate),
		clock: now,
		newID: uuid.NewString,
	}
}

func (s *CertificateStore) Issue(_ context.Context, draft domain.CertificateDraft) (domain.Certificate, error) {
	cert := domain.CloneCertificate(domain.Certificate{
		UserID:      draft.UserID,
		UserName:    draft.UserName,
		Topic:       draft.Topic,
		ChannelName: draft.ChannelName,
		VideoURL:    draft.VideoURL,
		Score:       draft.Score,
		Questions:   draft.Questions,
		UserAnswers: draft.UserAnswers,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	cert.ID = s.newID()
	cert.IssuedAt = s.clock().UTC()
	s.byID[cert.ID] = cert
	return domain.CloneCertificate(cert), nil
}

func (s *CertificateStore) GetByID(_ context.Context, id string) (domain.Certificate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byID[id]
	if !ok {
		return domain.Certificate{}, false, nil
	}
	return domain.CloneCertificate(cert), true, nil
}

func (s *CertificateStore) ListByUser(_ context.Context, userID string) ([]domain.Certificate, error) {
	s.mu.RLock()
	certs := make([]domain.Certificate, 0)
	for _, cert := range s.byID {
		if cert.UserID == userID {
			certs = append(certs, domain.CloneCertificate(cert))
		}
	}
	s.mu.RUnlock()

	sort.Slice(certs, func(i, j int) bool {
		if !certs[i].IssuedAt.Equal(certs[j].IssuedAt) {
			return certs[i].IssuedAt.After(certs[j].IssuedAt)
		}
		return certs[i].ID < certs[j].ID
	})
	return certs, nil
}

// Seed inserts a fully formed certificate as is, e.g. legacy rows without an
// answer key.
func (s *CertificateStore) Seed(cert domain.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[cert.ID] = domain.CloneCertificate(cert)
}
