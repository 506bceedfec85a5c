package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"gorm.io/gorm"
)

// AddressRepositoryTestSuite is the test suite for AddressRepository
type AddressRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo AddressRepository
}

func (s *AddressRepositoryTestSuite) SetupSuite() {
	s.db = openTestDB(s.T())
	s.repo = NewAddressRepository(s.db)
}

func (s *AddressRepositoryTestSuite) TearDownSuite() {
	closeTestDB(s.db)
}

func (s *AddressRepositoryTestSuite) SetupTest() {
	resetTables(s.db)
}

func TestAddressRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(AddressRepositoryTestSuite))
}

// ==================== Resolve Tests ====================

func (s *AddressRepositoryTestSuite) TestResolve_CreatesUnblocked() {
	address, err := s.repo.Resolve(context.Background(), "receiver@example.com")

	require.NoError(s.T(), err)
	assert.NotZero(s.T(), address.ID)
	assert.Equal(s.T(), "receiver@example.com", address.Email)
	assert.False(s.T(), address.IsBlocked)
	assert.Nil(s.T(), address.DomainID)
}

func (s *AddressRepositoryTestSuite) TestResolve_NormalizesAndReuses() {
	ctx := context.Background()
	first, err := s.repo.Resolve(ctx, "  Receiver@Example.COM ")
	require.NoError(s.T(), err)

	second, err := s.repo.Resolve(ctx, "receiver@example.com")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), first.ID, second.ID)
	assert.Equal(s.T(), "receiver@example.com", second.Email)

	var count int64
	s.db.Model(&models.Address{}).Count(&count)
	assert.Equal(s.T(), int64(1), count)
}

func (s *AddressRepositoryTestSuite) TestResolve_AssociatesRegisteredDomain() {
	ctx := context.Background()
	domain := &models.Domain{Name: "masked.example.com", IsActive: true}
	require.NoError(s.T(), NewDomainRepository(s.db).Create(ctx, domain))

	address, err := s.repo.Resolve(ctx, "alias@masked.example.com")

	require.NoError(s.T(), err)
	require.NotNil(s.T(), address.DomainID)
	assert.Equal(s.T(), domain.ID, *address.DomainID)
}

func (s *AddressRepositoryTestSuite) TestResolve_KeepsBlockedFlag() {
	ctx := context.Background()
	address, err := s.repo.Resolve(ctx, "receiver@example.com")
	require.NoError(s.T(), err)
	_, err = s.repo.SetBlocked(ctx, address.ID, true)
	require.NoError(s.T(), err)

	again, err := s.repo.Resolve(ctx, "receiver@example.com")

	require.NoError(s.T(), err)
	assert.True(s.T(), again.IsBlocked)
}

func (s *AddressRepositoryTestSuite) TestResolve_InvalidEmail() {
	for _, email := range []string{"", "   ", "no-at-sign"} {
		_, err := s.repo.Resolve(context.Background(), email)
		assert.ErrorIs(s.T(), err, ErrInvalidInput, email)
	}
}

func (s *AddressRepositoryTestSuite) TestResolve_ConcurrentFirstContact() {
	ctx := context.Background()
	const workers = 10

	var wg sync.WaitGroup
	ids := make([]uint, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			address, err := s.repo.Resolve(ctx, "race@example.com")
			errs[i] = err
			if err == nil {
				ids[i] = address.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(s.T(), errs[i])
		assert.Equal(s.T(), ids[0], ids[i])
	}

	var count int64
	s.db.Model(&models.Address{}).Where("email = ?", "race@example.com").Count(&count)
	assert.Equal(s.T(), int64(1), count)
}

// ==================== IsBlocked / SetBlocked Tests ====================

func (s *AddressRepositoryTestSuite) TestIsBlocked_UnknownAddress() {
	blocked, err := s.repo.IsBlocked(context.Background(), "nobody@example.com")

	require.NoError(s.T(), err)
	assert.False(s.T(), blocked)
}

func (s *AddressRepositoryTestSuite) TestSetBlocked_BlockAndUnblock() {
	ctx := context.Background()
	address, err := s.repo.Resolve(ctx, "receiver@example.com")
	require.NoError(s.T(), err)

	updated, err := s.repo.SetBlocked(ctx, address.ID, true)
	require.NoError(s.T(), err)
	assert.True(s.T(), updated.IsBlocked)

	blocked, err := s.repo.IsBlocked(ctx, "RECEIVER@example.com")
	require.NoError(s.T(), err)
	assert.True(s.T(), blocked)

	updated, err = s.repo.SetBlocked(ctx, address.ID, false)
	require.NoError(s.T(), err)
	assert.False(s.T(), updated.IsBlocked)
}

func (s *AddressRepositoryTestSuite) TestSetBlocked_NotFound() {
	result, err := s.repo.SetBlocked(context.Background(), 99999, true)

	assert.Nil(s.T(), result)
	assert.ErrorIs(s.T(), err, ErrNotFound)
}

// ==================== List Tests ====================

func (s *AddressRepositoryTestSuite) TestList_PaginationAndBlockedFilter() {
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := s.repo.Resolve(ctx, email)
		require.NoError(s.T(), err)
	}
	b, err := s.repo.GetByEmail(ctx, "b@example.com")
	require.NoError(s.T(), err)
	_, err = s.repo.SetBlocked(ctx, b.ID, true)
	require.NoError(s.T(), err)

	page, total, err := s.repo.List(ctx, false, 2, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(3), total)
	assert.Len(s.T(), page, 2)

	blocked, total, err := s.repo.List(ctx, true, 10, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), total)
	require.Len(s.T(), blocked, 1)
	assert.Equal(s.T(), "b@example.com", blocked[0].Email)
}
