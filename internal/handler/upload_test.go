package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glucolens/glucolens-server/internal/middleware"
	"github.com/glucolens/glucolens-server/internal/model"
	"github.com/glucolens/glucolens-server/internal/service"
	"github.com/glucolens/glucolens-server/internal/sse"
	"github.com/glucolens/glucolens-server/internal/storage"
	"github.com/glucolens/glucolens-server/internal/util"
)

// Shared mocks for handler tests.

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PairingSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingSession), args.Error(1)
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.PairingSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PairingSession), args.Error(1)
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockUploadRepo struct {
	mock.Mock
}

// Create echoes params.StorageRef when the configured return value leaves
// it empty, since the ref is generated inside the handler under test.
func (m *mockUploadRepo) Create(ctx context.Context, params model.CreateUploadParams) (*model.UploadedImage, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	upload := *args.Get(0).(*model.UploadedImage)
	if upload.StorageRef == "" {
		upload.StorageRef = params.StorageRef
	}
	return &upload, args.Error(1)
}

func (m *mockUploadRepo) FindByStorageRef(ctx context.Context, storageRef string) (*model.UploadedImage, error) {
	args := m.Called(ctx, storageRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UploadedImage), args.Error(1)
}

func (m *mockUploadRepo) FindRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.UploadedImage, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.UploadedImage), args.Error(1)
}

var jpegPayload = append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 2048)...)

const testToken = "cafebabe00112233cafebabe00112233cafebabe00112233cafebabe00112233"

func liveSessionFor(token string) *model.PairingSession {
	return &model.PairingSession{
		ID:        "sess-1",
		TokenHash: util.HashToken(token),
		OwnerID:   "user-1",
		ExpiresAt: time.Now().Add(9 * time.Minute),
	}
}

func multipartBody(t *testing.T, token string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if token != "" {
		require.NoError(t, w.WriteField("token", token))
	}
	if image != nil {
		part, err := w.CreateFormFile("image", "meal.jpg")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

type uploadFixture struct {
	handler  *UploadHandler
	broker   *sse.Broker
	images   *storage.ImageStore
	sessions *mockSessionRepo
	uploads  *mockUploadRepo
}

func newUploadFixture(t *testing.T) *uploadFixture {
	t.Helper()
	images, err := storage.NewImageStore(t.TempDir())
	require.NoError(t, err)

	sessions := new(mockSessionRepo)
	uploads := new(mockUploadRepo)
	broker := sse.NewBroker()
	t.Cleanup(broker.Close)

	sessionService := service.NewSessionService(sessions, 10*time.Minute)
	handler := NewUploadHandler(sessionService, images, uploads, broker, 10<<20)

	return &uploadFixture{
		handler:  handler,
		broker:   broker,
		images:   images,
		sessions: sessions,
		uploads:  uploads,
	}
}

func (f *uploadFixture) do(t *testing.T, token string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, token, image)
	req := httptest.NewRequest(http.MethodPost, "/v1/meals/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.handler.Upload(rec, req)
	return rec
}

func TestUploadHandler_Upload(t *testing.T) {
	t.Run("stores the image and notifies the subscriber once", func(t *testing.T) {
		f := newUploadFixture(t)
		f.sessions.On("FindByTokenHash", mock.Anything, util.HashToken(testToken)).Return(liveSessionFor(testToken), nil)
		f.uploads.On("Create", mock.Anything, mock.MatchedBy(func(p model.CreateUploadParams) bool {
			return p.SessionID == "sess-1" && p.OwnerID == "user-1" && p.StorageRef != ""
		})).Return(&model.UploadedImage{
			ID:         "up-1",
			SessionID:  "sess-1",
			OwnerID:    "user-1",
			ReceivedAt: time.Now(),
		}, nil)

		subscriber := f.broker.Subscribe(testToken)

		rec := f.do(t, testToken, jpegPayload)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["storageRef"])

		select {
		case ev := <-subscriber.Events:
			assert.Equal(t, EventImageReceived, ev.Type)

			var payload ImageReceivedPayload
			require.NoError(t, json.Unmarshal(ev.Data, &payload))
			// Storage-before-notify: the ref in the event is already readable.
			assert.True(t, f.images.Exists(payload.StorageRef))
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive image-received event")
		}

		select {
		case <-subscriber.Events:
			t.Fatal("subscriber received duplicate event")
		default:
		}
	})

	t.Run("missing token is invalid input, not an auth failure", func(t *testing.T) {
		f := newUploadFixture(t)

		rec := f.do(t, "", jpegPayload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.sessions.AssertNotCalled(t, "FindByTokenHash")
	})

	t.Run("missing file is invalid input", func(t *testing.T) {
		f := newUploadFixture(t)

		rec := f.do(t, testToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("oversized upload is 413 through the body limit chain", func(t *testing.T) {
		f := newUploadFixture(t)
		chain := middleware.NewBodyLimitMiddleware(1 << 20).Handler(http.HandlerFunc(f.handler.Upload))
		oversized := append([]byte{0xff, 0xd8, 0xff, 0xe0}, make([]byte, 2<<20)...)

		// Declared length over the cap is rejected before any read.
		body, contentType := multipartBody(t, testToken, oversized)
		req := httptest.NewRequest(http.MethodPost, "/v1/meals/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "Request body too large")

		// Without a declared length the cap is enforced while the form
		// is being read.
		body, contentType = multipartBody(t, testToken, oversized)
		req = httptest.NewRequest(http.MethodPost, "/v1/meals/upload", body)
		req.Header.Set("Content-Type", contentType)
		req.ContentLength = -1
		rec = httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), "PAYLOAD_TOO_LARGE")

		f.sessions.AssertNotCalled(t, "FindByTokenHash")
		f.uploads.AssertNotCalled(t, "Create")
	})

	t.Run("unknown or expired token is 410 and nothing is stored", func(t *testing.T) {
		f := newUploadFixture(t)
		f.sessions.On("FindByTokenHash", mock.Anything, mock.Anything).Return(nil, nil)

		rec := f.do(t, testToken, jpegPayload)
		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_SESSION")
		f.uploads.AssertNotCalled(t, "Create")
	})

	t.Run("non-image payload is rejected after validation", func(t *testing.T) {
		f := newUploadFixture(t)
		f.sessions.On("FindByTokenHash", mock.Anything, mock.Anything).Return(liveSessionFor(testToken), nil)

		rec := f.do(t, testToken, []byte("plain text pretending to be meal.jpg"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.uploads.AssertNotCalled(t, "Create")
	})

	t.Run("upload succeeds with zero subscribers", func(t *testing.T) {
		f := newUploadFixture(t)
		f.sessions.On("FindByTokenHash", mock.Anything, mock.Anything).Return(liveSessionFor(testToken), nil)
		f.uploads.On("Create", mock.Anything, mock.Anything).Return(&model.UploadedImage{
			ID:         "up-1",
			StorageRef: "ref",
			ReceivedAt: time.Now(),
		}, nil)

		rec := f.do(t, testToken, jpegPayload)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("a disconnected subscriber does not fail the upload", func(t *testing.T) {
		f := newUploadFixture(t)
		f.sessions.On("FindByTokenHash", mock.Anything, mock.Anything).Return(liveSessionFor(testToken), nil)
		f.uploads.On("Create", mock.Anything, mock.Anything).Return(&model.UploadedImage{
			ID:         "up-1",
			StorageRef: "ref",
			ReceivedAt: time.Now(),
		}, nil)

		gone := f.broker.Subscribe(testToken)
		stays := f.broker.Subscribe(testToken)
		f.broker.Unsubscribe(gone)

		rec := f.do(t, testToken, jpegPayload)
		require.Equal(t, http.StatusOK, rec.Code)

		select {
		case ev := <-stays.Events:
			assert.Equal(t, EventImageReceived, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("remaining subscriber did not receive event")
		}
	})
}
