package mocks

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
)

// MockTransport implements relay.Transport and records every sent message
type MockTransport struct {
	mock.Mock

	mu   sync.Mutex
	Sent []*email.OutgoingMail
}

func (m *MockTransport) Send(ctx context.Context, mail *email.OutgoingMail) error {
	args := m.Called(ctx, mail)
	if args.Error(0) == nil {
		m.mu.Lock()
		m.Sent = append(m.Sent, mail)
		m.mu.Unlock()
	}
	return args.Error(0)
}

func (m *MockTransport) Name() string {
	return "mock"
}

// SentMail returns a copy of the successfully sent messages
func (m *MockTransport) SentMail() []*email.OutgoingMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*email.OutgoingMail(nil), m.Sent...)
}

// MockAuditNotifier implements relay.AuditNotifier
type MockAuditNotifier struct {
	mu      sync.Mutex
	Records []*models.Message
}

func (m *MockAuditNotifier) NotifyAudit(message *models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, message)
}

// Notified returns the records seen so far
func (m *MockAuditNotifier) Notified() []*models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Message(nil), m.Records...)
}
