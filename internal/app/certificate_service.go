package app

import (
	"context"
	"strings"

	"certquiz-service/internal/domain"
)

// CertificateService serves public verification and the owner's dashboard.
type CertificateService struct {
	store CertificateStore
}

func NewCertificateService(store CertificateStore) *CertificateService {
	return &CertificateService{store: store}
}

// Verify looks a certificate up by ID without requiring an identity.
// The ID is trimmed but otherwise compared exactly.
func (s *CertificateService) Verify(ctx context.Context, id string) (domain.Certificate, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Certificate{}, false, nil
	}
	return s.store.GetByID(ctx, id)
}

// ListForUser returns the caller's certificates, newest first.
func (s *CertificateService) ListForUser(ctx context.Context, who domain.Identity) ([]domain.Certificate, error) {
	if who.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.ListByUser(ctx, who.UserID)
}

// AnswerKeys returns answer keys for the caller's certificates that carry a
// question snapshot. Certificates without one are skipped.
func (s *CertificateService) AnswerKeys(ctx context.Context, who domain.Identity) ([]AnswerKey, error) {
	certs, err := s.ListForUser(ctx, who)
	if err != nil {
		return nil, err
	}
	keys := make([]AnswerKey, 0, len(certs))
	for _, cert := range certs {
		if key, ok := AnswerKeyFor(cert); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// AnswerKeyFor builds the answer key of a certificate, reporting false when
// the certificate predates answer keys.
func AnswerKeyFor(cert domain.Certificate) (AnswerKey, bool) {
	if !cert.HasAnswerKey() {
		return AnswerKey{}, false
	}
	answers := make([]int, len(cert.Questions))
	for i := range answers {
		answers[i] = cert.UserAnswer(i)
	}
	return AnswerKey{
		CertificateID: cert.ID,
		Topic:         cert.Topic,
		Score:         cert.Score,
		IssuedAt:      cert.IssuedAt,
		Items:         buildAnswerKey(cert.Questions, answers),
	}, true
}
