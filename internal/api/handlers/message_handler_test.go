package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/response"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"github.com/welldanyogia/webrana-mailfunnel/internal/repository"
	"github.com/welldanyogia/webrana-mailfunnel/tests/fixtures"
	"github.com/welldanyogia/webrana-mailfunnel/tests/mocks"
)

// MessageHandlerTestSuite is the test suite for MessageHandler
type MessageHandlerTestSuite struct {
	suite.Suite
	echo            *echo.Echo
	handler         *MessageHandler
	mockMessageRepo *mocks.MockMessageRepository
}

func (s *MessageHandlerTestSuite) SetupTest() {
	s.echo = echo.New()
	s.mockMessageRepo = new(mocks.MockMessageRepository)
	s.handler = NewMessageHandler(s.mockMessageRepo)
}

func (s *MessageHandlerTestSuite) TearDownTest() {
	s.mockMessageRepo.AssertExpectations(s.T())
}

func TestMessageHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(MessageHandlerTestSuite))
}

// ==================== List Tests ====================

func (s *MessageHandlerTestSuite) TestList_DefaultPagination() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages", "")
	messages := []models.Message{*fixtures.NewMessageBuilder().WithID(1).Build()}

	s.mockMessageRepo.On("List", mock.Anything, models.MessageFilter{}, 20, 0).Return(messages, int64(1), nil)

	s.NoError(s.handler.List(c))
	s.Equal(http.StatusOK, rec.Code)

	var resp response.PaginatedResponse
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.True(resp.Success)
	s.Equal(int64(1), resp.Meta.Total)
	s.Equal(20, resp.Meta.Limit)
}

func (s *MessageHandlerTestSuite) TestList_Filters() {
	c, rec := newContext(s.echo, http.MethodGet,
		"/api/messages?address_id=7&rejected=true&reason=spam_score&limit=500&offset=10", "")

	s.mockMessageRepo.On("List", mock.Anything, mock.MatchedBy(func(f models.MessageFilter) bool {
		return f.AddressID != nil && *f.AddressID == 7 &&
			f.Rejected != nil && *f.Rejected &&
			f.Reason != nil && *f.Reason == models.ReasonSpamScore
	}), 100, 10).Return([]models.Message{}, int64(0), nil)

	s.NoError(s.handler.List(c))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *MessageHandlerTestSuite) TestList_InvalidFilters() {
	for _, query := range []string{
		"address_id=abc",
		"rejected=maybe",
		"reason=virus",
	} {
		s.Run(query, func() {
			c, rec := newContext(s.echo, http.MethodGet, "/api/messages?"+query, "")

			s.NoError(s.handler.List(c))
			s.Equal(http.StatusBadRequest, rec.Code)
		})
	}
}

func (s *MessageHandlerTestSuite) TestList_InternalError() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages", "")
	s.mockMessageRepo.On("List", mock.Anything, mock.Anything, 20, 0).Return(nil, int64(0), errors.New("database error"))

	s.NoError(s.handler.List(c))
	s.Equal(http.StatusInternalServerError, rec.Code)
}

// ==================== Get Tests ====================

func (s *MessageHandlerTestSuite) TestGet_Success() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/1", "")
	message := fixtures.NewMessageBuilder().WithID(1).WithReason(models.ReasonAddressBlocked).Build()
	s.mockMessageRepo.On("GetByID", mock.Anything, uint(1)).Return(message, nil)

	s.NoError(s.handler.Get(withID(c, "1")))
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Data models.Message `json:"data"`
	}
	s.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.True(body.Data.IsRejected)
	s.Require().NotNil(body.Data.Reason)
	s.Equal(models.ReasonAddressBlocked, *body.Data.Reason)
}

func (s *MessageHandlerTestSuite) TestGet_NotFound() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/999", "")
	s.mockMessageRepo.On("GetByID", mock.Anything, uint(999)).Return(nil, repository.ErrNotFound)

	s.NoError(s.handler.Get(withID(c, "999")))
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *MessageHandlerTestSuite) TestGet_InvalidID() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/abc", "")

	s.NoError(s.handler.Get(withID(c, "abc")))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *MessageHandlerTestSuite) TestGet_InternalError() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/1", "")
	s.mockMessageRepo.On("GetByID", mock.Anything, uint(1)).Return(nil, errors.New("database error"))

	s.NoError(s.handler.Get(withID(c, "1")))
	s.Equal(http.StatusInternalServerError, rec.Code)
}

// ==================== Stats Tests ====================

func (s *MessageHandlerTestSuite) TestStats() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/stats", "")
	spam := models.ReasonSpamScore
	s.mockMessageRepo.On("CountByReason", mock.Anything).Return([]models.ReasonCount{
		{Reason: nil, Count: 10},
		{Reason: &spam, Count: 2},
	}, nil)

	s.NoError(s.handler.Stats(c))
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"reason":"spam_score"`)
}

func (s *MessageHandlerTestSuite) TestStats_InternalError() {
	c, rec := newContext(s.echo, http.MethodGet, "/api/messages/stats", "")
	s.mockMessageRepo.On("CountByReason", mock.Anything).Return(nil, errors.New("database error"))

	s.NoError(s.handler.Stats(c))
	s.Equal(http.StatusInternalServerError, rec.Code)
}
