package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/gigs-profile-service/internal/api"
	"github.com/FACorreiaa/gigs-profile-service/internal/api/auth"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

// MockDraftService is a mock implementation of DraftService.
type MockDraftService struct {
	mock.Mock
}

func (m *MockDraftService) SaveDraft(ctx context.Context, userID uuid.UUID, payload map[string]any) (*types.ProfileDraft, error) {
	args := m.Called(ctx, userID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProfileDraft), args.Error(1)
}

func (m *MockDraftService) LoadDraft(ctx context.Context, userID uuid.UUID) (*types.ProfileDraft, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ProfileDraft), args.Error(1)
}

func authedRequest(method, target string, body []byte, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(auth.WithUserID(req.Context(), userID, types.RoleUser))
}

func TestSaveDraftHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockDraftService)
		handler := NewHandlerImpl(mockService, slog.Default())
		payload := map[string]any{"name": "Asha"}
		mockService.On("SaveDraft", mock.Anything, userID, payload).
			Return(&types.ProfileDraft{UserID: userID, Data: types.Document{"name": "Asha"}}, nil).Once()

		body, _ := json.Marshal(payload)
		w := httptest.NewRecorder()
		handler.SaveDraft(w, authedRequest(http.MethodPost, "/profile/draft", body, userID))

		assert.Equal(t, http.StatusOK, w.Code)
		var resp DraftResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "Asha", resp.Draft.Data.String("name"))
		mockService.AssertExpectations(t)
	})

	t.Run("ValidationErrorListsFields", func(t *testing.T) {
		mockService := new(MockDraftService)
		handler := NewHandlerImpl(mockService, slog.Default())
		verr := &types.ValidationError{Fields: []types.FieldError{
			{Field: "email", Reason: "invalid email"},
			{Field: "pan", Reason: "invalid PAN"},
		}}
		mockService.On("SaveDraft", mock.Anything, userID, mock.Anything).Return(nil, verr).Once()

		w := httptest.NewRecorder()
		handler.SaveDraft(w, authedRequest(http.MethodPost, "/profile/draft", []byte(`{"email":"x","pan":"y"}`), userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp api.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation", resp.Kind)
		assert.Len(t, resp.Fields, 2)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		mockService := new(MockDraftService)
		handler := NewHandlerImpl(mockService, slog.Default())

		req := httptest.NewRequest(http.MethodPost, "/profile/draft", bytes.NewBufferString(`{}`))
		w := httptest.NewRecorder()
		handler.SaveDraft(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		mockService.AssertNotCalled(t, "SaveDraft")
	})

	t.Run("MalformedBody", func(t *testing.T) {
		mockService := new(MockDraftService)
		handler := NewHandlerImpl(mockService, slog.Default())

		w := httptest.NewRecorder()
		handler.SaveDraft(w, authedRequest(http.MethodPost, "/profile/draft", []byte(`{"name":`), userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "SaveDraft")
	})
}

func TestGetDraftHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockDraftService)
		handler := NewHandlerImpl(mockService, slog.Default())
		mockService.On("LoadDraft", mock.Anything, userID).Return(nil, types.ErrNotFound).Once()

		w := httptest.NewRecorder()
		handler.GetDraft(w, authedRequest(http.MethodGet, "/profile/draft", nil, userID))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Found", func(t *testing.T) {
		mockService := new(MockDraftService)
		handler := NewHandlerImpl(mockService, slog.Default())
		mockService.On("LoadDraft", mock.Anything, userID).
			Return(&types.ProfileDraft{UserID: userID, Data: types.Document{"mobile": "9876543210"}}, nil).Once()

		w := httptest.NewRecorder()
		handler.GetDraft(w, authedRequest(http.MethodGet, "/profile/draft", nil, userID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "9876543210")
	})
}
