//go:build integration

package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/welldanyogia/webrana-mailfunnel/internal/database"
	"github.com/welldanyogia/webrana-mailfunnel/internal/logger"
	"github.com/welldanyogia/webrana-mailfunnel/internal/relay"
	"github.com/welldanyogia/webrana-mailfunnel/internal/repository"
	"github.com/welldanyogia/webrana-mailfunnel/internal/token"
	"github.com/welldanyogia/webrana-mailfunnel/tests/fixtures"
	"github.com/welldanyogia/webrana-mailfunnel/tests/mocks"
	"gorm.io/gorm"
)

// postgresContainer is a throwaway PostgreSQL instance
type postgresContainer struct {
	container testcontainers.Container
	db        *gorm.DB
}

// startPostgres starts PostgreSQL and returns a migrated connection to it
func startPostgres(t *testing.T, dbName string) *postgresContainer {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       dbName,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=%s sslmode=disable",
		host, port.Port(), dbName)

	db, err := database.Connect(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	return &postgresContainer{container: container, db: db}
}

// truncate empties every table between tests
func (p *postgresContainer) truncate() {
	p.db.Exec("TRUNCATE TABLE messages, addresses, domains RESTART IDENTITY CASCADE")
}

func (p *postgresContainer) terminate() {
	if p == nil {
		return
	}
	if p.db != nil {
		_ = database.Close(p.db)
	}
	if p.container != nil {
		_ = p.container.Terminate(context.Background())
	}
}

// relayStack is the wired set of pipelines over a real database with a
// recording transport
type relayStack struct {
	domains   repository.DomainRepository
	addresses repository.AddressRepository
	messages  repository.MessageRepository
	codec     *token.Codec
	transport *mocks.MockTransport
	inbound   *relay.InboundPipeline
	outbound  *relay.OutboundPipeline
	security  *logger.SecurityLogger
	logger    *slog.Logger
}

func newRelayStack(t *testing.T, db *gorm.DB, notifier relay.AuditNotifier) *relayStack {
	t.Helper()

	codec, err := token.New([]byte(fixtures.RelaySecret), fixtures.RelayDomain)
	require.NoError(t, err)

	transport := new(mocks.MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &relayStack{
		domains:   repository.NewDomainRepository(db),
		addresses: repository.NewAddressRepository(db),
		messages:  repository.NewMessageRepository(db),
		codec:     codec,
		transport: transport,
		security:  logger.NewSecurityLoggerWithHandler(slog.NewTextHandler(io.Discard, nil)),
		logger:    log,
	}

	cfg := relay.Config{
		RecipientEmail: fixtures.OwnerEmail,
		RecipientName:  fixtures.OwnerName,
		FromAddress:    fixtures.FromAddress,
		SpamThreshold:  relay.DefaultSpamThreshold,
	}
	deps := relay.Deps{
		Registry:  s.addresses,
		Audit:     s.messages,
		Codec:     codec,
		Transport: transport,
		Notifier:  notifier,
		Security:  s.security,
		Logger:    log,
	}
	s.inbound = relay.NewInboundPipeline(cfg, deps)
	s.outbound = relay.NewOutboundPipeline(cfg, deps)
	return s
}
