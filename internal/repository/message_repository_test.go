package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"gorm.io/gorm"
)

// MessageRepositoryTestSuite is the test suite for MessageRepository
type MessageRepositoryTestSuite struct {
	suite.Suite
	db        *gorm.DB
	repo      MessageRepository
	addresses AddressRepository
}

func (s *MessageRepositoryTestSuite) SetupSuite() {
	s.db = openTestDB(s.T())
	s.repo = NewMessageRepository(s.db)
	s.addresses = NewAddressRepository(s.db)
}

func (s *MessageRepositoryTestSuite) TearDownSuite() {
	closeTestDB(s.db)
}

func (s *MessageRepositoryTestSuite) SetupTest() {
	resetTables(s.db)
}

func TestMessageRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MessageRepositoryTestSuite))
}

func (s *MessageRepositoryTestSuite) createAddress(email string) *models.Address {
	address, err := s.addresses.Resolve(context.Background(), email)
	require.NoError(s.T(), err)
	return address
}

func strPtr(s string) *string { return &s }

// ==================== Create Tests ====================

func (s *MessageRepositoryTestSuite) TestCreate_Accepted() {
	address := s.createAddress("receiver@example.com")
	msg := &models.Message{
		Subject:   "Hello",
		From:      "Test Sender <sender@example.com>",
		AddressID: &address.ID,
		SpamScore: strPtr("1.2"),
		Provider:  "postmark",
	}

	err := s.repo.Create(context.Background(), msg)

	require.NoError(s.T(), err)
	assert.NotZero(s.T(), msg.ID)

	stored, err := s.repo.GetByID(context.Background(), msg.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Test Sender <sender@example.com>", stored.From)
	assert.False(s.T(), stored.IsRejected)
	assert.Nil(s.T(), stored.Reason)
	require.NotNil(s.T(), stored.Address)
	assert.Equal(s.T(), "receiver@example.com", stored.Address.Email)
	require.NotNil(s.T(), stored.SpamScore)
	assert.Equal(s.T(), "1.2", *stored.SpamScore)
}

func (s *MessageRepositoryTestSuite) TestCreate_RejectedReasonStoredVerbatim() {
	msg := &models.Message{Subject: "Spam", From: "spammer@example.com"}
	msg.Reject(models.ReasonSpamScore)

	require.NoError(s.T(), s.repo.Create(context.Background(), msg))

	var raw string
	require.NoError(s.T(), s.db.Raw("SELECT reason FROM messages WHERE id = ?", msg.ID).Scan(&raw).Error)
	assert.Equal(s.T(), "spam_score", raw)
}

func (s *MessageRepositoryTestSuite) TestCreate_InconsistentRejection() {
	flagOnly := &models.Message{Subject: "x", From: "a@example.com", IsRejected: true}
	err := s.repo.Create(context.Background(), flagOnly)
	assert.ErrorIs(s.T(), err, ErrInvalidInput)
	assert.ErrorIs(s.T(), err, models.ErrInconsistentRejection)

	reason := models.ReasonAddressBlocked
	reasonOnly := &models.Message{Subject: "x", From: "a@example.com", Reason: &reason}
	err = s.repo.Create(context.Background(), reasonOnly)
	assert.ErrorIs(s.T(), err, ErrInvalidInput)

	unknown := models.RejectReason("other")
	bogus := &models.Message{Subject: "x", From: "a@example.com", IsRejected: true, Reason: &unknown}
	err = s.repo.Create(context.Background(), bogus)
	assert.ErrorIs(s.T(), err, ErrInvalidInput)

	var count int64
	s.db.Model(&models.Message{}).Count(&count)
	assert.Zero(s.T(), count)
}

func (s *MessageRepositoryTestSuite) TestSave_Immutable() {
	msg := &models.Message{Subject: "Hello", From: "a@example.com"}
	require.NoError(s.T(), s.repo.Create(context.Background(), msg))

	msg.Subject = "Changed"
	err := s.db.Save(msg).Error

	assert.ErrorIs(s.T(), err, models.ErrImmutableMessage)
}

// ==================== GetByID Tests ====================

func (s *MessageRepositoryTestSuite) TestGetByID_NotFound() {
	result, err := s.repo.GetByID(context.Background(), 99999)

	assert.Nil(s.T(), result)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== List Tests ====================

func (s *MessageRepositoryTestSuite) seedMessages() (*models.Address, *models.Address) {
	ctx := context.Background()
	a := s.createAddress("a@example.com")
	b := s.createAddress("b@example.com")

	accepted := &models.Message{Subject: "ok", From: "x@example.com", AddressID: &a.ID}
	spam := &models.Message{Subject: "spam", From: "x@example.com", AddressID: &a.ID}
	spam.Reject(models.ReasonSpamScore)
	blocked := &models.Message{Subject: "blocked", From: "x@example.com", AddressID: &b.ID}
	blocked.Reject(models.ReasonAddressBlocked)

	for _, m := range []*models.Message{accepted, spam, blocked} {
		require.NoError(s.T(), s.repo.Create(ctx, m))
	}
	return a, b
}

func (s *MessageRepositoryTestSuite) TestList_Filters() {
	ctx := context.Background()
	a, b := s.seedMessages()

	all, total, err := s.repo.List(ctx, models.MessageFilter{}, 10, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(3), total)
	assert.Len(s.T(), all, 3)
	assert.Equal(s.T(), "blocked", all[0].Subject)

	byAddress, total, err := s.repo.List(ctx, models.MessageFilter{AddressID: &a.ID}, 10, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), total)
	assert.Len(s.T(), byAddress, 2)

	rejected := true
	rej, total, err := s.repo.List(ctx, models.MessageFilter{Rejected: &rejected}, 10, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(2), total)
	assert.Len(s.T(), rej, 2)

	reason := models.ReasonAddressBlocked
	byReason, total, err := s.repo.List(ctx, models.MessageFilter{Reason: &reason}, 10, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	require.Len(s.T(), byReason, 1)
	require.NotNil(s.T(), byReason[0].AddressID)
	assert.Equal(s.T(), b.ID, *byReason[0].AddressID)
}

func (s *MessageRepositoryTestSuite) TestList_Pagination() {
	s.seedMessages()

	page, total, err := s.repo.List(context.Background(), models.MessageFilter{}, 2, 2)

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(3), total)
	require.Len(s.T(), page, 1)
	assert.Equal(s.T(), "ok", page[0].Subject)
}

// ==================== CountByReason Tests ====================

func (s *MessageRepositoryTestSuite) TestCountByReason() {
	s.seedMessages()

	counts, err := s.repo.CountByReason(context.Background())
	require.NoError(s.T(), err)

	got := map[string]int64{}
	for _, c := range counts {
		key := "accepted"
		if c.Reason != nil {
			key = string(*c.Reason)
		}
		got[key] = c.Count
	}
	assert.Equal(s.T(), map[string]int64{"accepted": 1, "spam_score": 1, "address_blocked": 1}, got)
}
