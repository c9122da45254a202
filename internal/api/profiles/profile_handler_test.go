package profiles

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
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

// MockProfileService is a mock implementation of ProfileService.
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileService) SaveProfile(ctx context.Context, userID uuid.UUID, payload map[string]any) (*types.Profile, error) {
	args := m.Called(ctx, userID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileService) Finalize(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileService) Transition(ctx context.Context, userID uuid.UUID, to types.ProfileStatus) (*types.Profile, error) {
	args := m.Called(ctx, userID, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

type stubUploader struct {
	got map[string][]*multipart.FileHeader
}

func (s *stubUploader) UploadDocuments(_ context.Context, _ uuid.UUID, files map[string][]*multipart.FileHeader) (map[string]string, error) {
	s.got = files
	urls := map[string]string{}
	for field := range files {
		urls[field] = "https://cdn.example.com/" + field
	}
	return urls, nil
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID, types.RoleUser))
}

func TestFinalizeProfileHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("missing fields are listed", func(t *testing.T) {
		mockService := new(MockProfileService)
		handler := NewHandlerImpl(mockService, nil, 0, slog.Default())
		mockService.On("Finalize", mock.Anything, userID).Return(nil, missingFieldsError([]string{"aadhaar", "pan"})).Once()

		w := httptest.NewRecorder()
		handler.FinalizeProfile(w, withUser(httptest.NewRequest(http.MethodPost, "/profile/finalize", nil), userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp api.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation", resp.Kind)
		require.Len(t, resp.Fields, 2)
		assert.Equal(t, "aadhaar", resp.Fields[0].Field)
		assert.Equal(t, "pan", resp.Fields[1].Field)
	})

	t.Run("finalized", func(t *testing.T) {
		mockService := new(MockProfileService)
		handler := NewHandlerImpl(mockService, nil, 0, slog.Default())
		mockService.On("Finalize", mock.Anything, userID).
			Return(&types.Profile{UserID: userID, Status: types.ProfileStatusPending}, nil).Once()

		w := httptest.NewRecorder()
		handler.FinalizeProfile(w, withUser(httptest.NewRequest(http.MethodPost, "/profile/finalize", nil), userID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
	})

	t.Run("nothing to finalize", func(t *testing.T) {
		mockService := new(MockProfileService)
		handler := NewHandlerImpl(mockService, nil, 0, slog.Default())
		mockService.On("Finalize", mock.Anything, userID).Return(nil, types.ErrNotFound).Once()

		w := httptest.NewRecorder()
		handler.FinalizeProfile(w, withUser(httptest.NewRequest(http.MethodPost, "/profile/finalize", nil), userID))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSaveProfileHandler(t *testing.T) {
	userID := uuid.New()

	t.Run("json body", func(t *testing.T) {
		mockService := new(MockProfileService)
		handler := NewHandlerImpl(mockService, nil, 0, slog.Default())
		mockService.On("SaveProfile", mock.Anything, userID, map[string]any{"name": "Asha"}).
			Return(&types.Profile{UserID: userID}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/profile", bytes.NewBufferString(`{"name":"Asha"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.SaveProfile(w, withUser(req, userID))

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("multipart form uploads files and nests dotted keys", func(t *testing.T) {
		mockService := new(MockProfileService)
		uploader := &stubUploader{}
		handler := NewHandlerImpl(mockService, uploader, 1<<20, slog.Default())

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("name", "Asha"))
		require.NoError(t, mw.WriteField("address.city", "Pune"))
		fw, err := mw.CreateFormFile("resume", "cv.pdf")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("%PDF"))
		require.NoError(t, mw.Close())

		mockService.On("SaveProfile", mock.Anything, userID, map[string]any{
			"name":    "Asha",
			"address": map[string]any{"city": "Pune"},
			"resume":  "https://cdn.example.com/resume",
		}).Return(&types.Profile{UserID: userID}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/profile", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		handler.SaveProfile(w, withUser(req, userID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, uploader.got, "resume")
		mockService.AssertExpectations(t)
	})

	t.Run("invalid text field stops the form before any upload", func(t *testing.T) {
		mockService := new(MockProfileService)
		uploader := &stubUploader{}
		handler := NewHandlerImpl(mockService, uploader, 1<<20, slog.Default())

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("pan", "not-a-pan"))
		fw, err := mw.CreateFormFile("resume", "cv.pdf")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("%PDF"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/profile", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		handler.SaveProfile(w, withUser(req, userID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"field":"pan"`)
		assert.Nil(t, uploader.got)
		mockService.AssertNotCalled(t, "SaveProfile")
	})

	t.Run("duplicate email", func(t *testing.T) {
		mockService := new(MockProfileService)
		handler := NewHandlerImpl(mockService, nil, 0, slog.Default())
		mockService.On("SaveProfile", mock.Anything, userID, mock.Anything).Return(nil, types.ErrDuplicateKey).Once()

		req := httptest.NewRequest(http.MethodPost, "/profile", bytes.NewBufferString(`{"email":"taken@example.com"}`))
		w := httptest.NewRecorder()
		handler.SaveProfile(w, withUser(req, userID))

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestGetProfileHandler(t *testing.T) {
	mockService := new(MockProfileService)
	handler := NewHandlerImpl(mockService, nil, 0, slog.Default())

	w := httptest.NewRecorder()
	handler.GetProfile(w, httptest.NewRequest(http.MethodGet, "/profile", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockService.AssertNotCalled(t, "GetProfile")
}
