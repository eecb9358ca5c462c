package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/mocks"
	"messenger-service/internal/ws"
)

var testNow = time.Date(2024, 3, 19, 10, 0, 0, 0, time.UTC)

type testDeps struct {
	Deps
	users    *mocks.UserRepositoryMock
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	statuses *mocks.StatusRepositoryMock
	media    *mocks.MediaStoreMock
	clock    *clockwork.FakeClock
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	logger, _ := test.NewNullLogger()
	clock := clockwork.NewFakeClockAt(testNow)
	td := &testDeps{
		users:    new(mocks.UserRepositoryMock),
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		statuses: new(mocks.StatusRepositoryMock),
		media:    new(mocks.MediaStoreMock),
		clock:    clock,
	}
	td.Deps = Deps{
		Users:    td.users,
		Chats:    td.chats,
		Messages: td.messages,
		Statuses: td.statuses,
		Media:    td.media,
		Hub:      ws.NewHub(logger),
		Tokens:   auth.NewTokenIssuer("test-secret", time.Hour, clock),
		Clock:    clock,
		Logger:   logger,
	}
	t.Cleanup(func() {
		td.users.AssertExpectations(t)
		td.chats.AssertExpectations(t)
		td.messages.AssertExpectations(t)
		td.statuses.AssertExpectations(t)
		td.media.AssertExpectations(t)
	})
	return td
}

// asUser returns a router whose requests are authenticated as userID.
func asUser(userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func doMultipart(t *testing.T, router http.Handler, path string, fields map[string]string, fileField, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		part, err := w.CreateFormFile(fileField, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func strPtr(s string) *string {
	return &s
}
