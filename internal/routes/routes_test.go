package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/haguru/doorquest/config"
	"github.com/haguru/doorquest/internal/hasher"
	"github.com/haguru/doorquest/internal/interfaces"
	"github.com/haguru/doorquest/internal/interfaces/mocks"
	"github.com/haguru/doorquest/internal/picstore"
	"github.com/haguru/doorquest/internal/server"
	"github.com/haguru/doorquest/internal/userrepo/sqlrepo"
	"github.com/haguru/doorquest/internal/userservice"
	"github.com/haguru/doorquest/pkg/databases/sqlite"
	"github.com/haguru/doorquest/pkg/metrics"
	"github.com/haguru/doorquest/pkg/zerolog"
)

type testAPI struct {
	handler http.Handler
	metrics interfaces.Metrics
}

// newTestAPI serves the routes over a real sqlite store and picture directory.
func newTestAPI(t *testing.T, maxBodyBytes int64) *testAPI {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	client := sqlite.NewSQLiteDatabaseClient(&config.SQLiteConfig{
		ValidTables: []string{"users"},
		ValidFields: []string{"id", "username", "password"},
	})
	require.NoError(t, client.Connect(ctx, filepath.Join(dir, "database.db")))
	repo, err := sqlrepo.NewSQLUserRepository(client, sqlrepo.SQLiteSchema)
	require.NoError(t, err)
	require.NoError(t, repo.EnsureIndices(ctx))
	t.Cleanup(func() { _ = repo.Close(ctx) })

	pictures, err := picstore.NewFileStore(filepath.Join(dir, "profile_pics"))
	require.NoError(t, err)
	h, err := hasher.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	service := userservice.NewUserService(repo, h, pictures, zerolog.NewNopLogger())
	return newTestAPIWithService(t, service, maxBodyBytes)
}

func newTestAPIWithService(t *testing.T, service interfaces.UserService, maxBodyBytes int64) *testAPI {
	t.Helper()
	m := metrics.NewMetrics("test")
	RegisterMetrics(m)

	route := NewRoute(m, service, zerolog.NewNopLogger(), nil, maxBodyBytes)
	s := server.NewServer("127.0.0.1", "0", "test", zerolog.NewNopLogger())
	require.NoError(t, route.AddRoutes(s))
	return &testAPI{handler: s.Handler(), metrics: m}
}

func (a *testAPI) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) upload(t *testing.T, username, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if username != "" {
		require.NoError(t, writer.WriteField("username", username))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-profile-pic", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

// requestCount reads the requests_total sample for operation and outcome.
func requestCount(t *testing.T, m interfaces.Metrics, operation, outcome string) float64 {
	t.Helper()
	families, err := m.GetRegistry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "test_"+RequestsTotal {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels[LabelOperation] == operation && labels[LabelOutcome] == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRoute_Root(t *testing.T) {
	api := newTestAPI(t, 0)

	rr := api.get(t, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ContentTypeJson, rr.Header().Get(ContentType))
	assert.Equal(t, map[string]interface{}{"message": MsgAPIRunning}, decode(t, rr))

	assert.Equal(t, http.StatusNotFound, api.get(t, "/unknown").Code)
}

func TestRoute_RegisterAndListUsers(t *testing.T) {
	api := newTestAPI(t, 0)

	rr := api.get(t, "/users")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"users":[]}`, rr.Body.String())

	for _, name := range []string{"alice", "bob", "alice"} {
		rr := api.postForm(t, "/register", url.Values{"username": {name}, "password": {"pw"}})
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "User '"+name+"' registered successfully!", decode(t, rr)["message"])
	}

	rr = api.get(t, "/users")
	assert.JSONEq(t, `{"users":["alice","bob","alice"]}`, rr.Body.String())
	assert.Equal(t, 3.0, requestCount(t, api.metrics, OpRegister, OutcomeSuccess))
}

func TestRoute_RegisterValidation(t *testing.T) {
	api := newTestAPI(t, 0)

	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{name: "missing username", form: url.Values{"password": {"pw"}}, message: "Missing or invalid field: username"},
		{name: "missing password", form: url.Values{"username": {"alice"}}, message: "Missing or invalid field: password"},
		{name: "password too long", form: url.Values{"username": {"alice"}, "password": {strings.Repeat("x", 73)}}, message: "Missing or invalid field: password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.postForm(t, "/register", tt.form)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, map[string]interface{}{"message": tt.message}, decode(t, rr))
		})
	}

	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/register", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRoute_Login(t *testing.T) {
	api := newTestAPI(t, 0)
	require.Equal(t, http.StatusOK, api.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {"secret"}}).Code)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		message  string
	}{
		{
			name:     "valid credentials",
			form:     url.Values{"username": {"alice"}, "password": {"secret"}},
			wantCode: http.StatusOK,
			message:  "Welcome, alice!",
		},
		{
			name:     "wrong password",
			form:     url.Values{"username": {"alice"}, "password": {"nope"}},
			wantCode: http.StatusOK,
			message:  MsgInvalidCredentials,
		},
		{
			name:     "unknown user",
			form:     url.Values{"username": {"mallory"}, "password": {"secret"}},
			wantCode: http.StatusOK,
			message:  MsgInvalidCredentials,
		},
		{
			name:     "missing password",
			form:     url.Values{"username": {"alice"}},
			wantCode: http.StatusBadRequest,
			message:  "Missing or invalid field: password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.postForm(t, "/login", tt.form)
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, map[string]interface{}{"message": tt.message}, decode(t, rr))
		})
	}
	assert.Equal(t, 2.0, requestCount(t, api.metrics, OpLogin, OutcomeUnauthorized))
}

func TestRoute_PasswordByteLimit(t *testing.T) {
	api := newTestAPI(t, 0)
	multibyte := strings.Repeat("é", 40) // 40 runes, 80 bytes
	atLimit := strings.Repeat("é", 36)   // 72 bytes

	rr := api.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {multibyte}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, map[string]interface{}{"message": "Missing or invalid field: password"}, decode(t, rr))

	rr = api.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {atLimit}})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = api.postForm(t, "/change-password", url.Values{
		"username": {"alice"}, "old_password": {atLimit}, "new_password": {multibyte},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, map[string]interface{}{"message": "Missing or invalid field: new_password"}, decode(t, rr))

	rr = api.postForm(t, "/login", url.Values{"username": {"alice"}, "password": {atLimit}})
	assert.Equal(t, "Welcome, alice!", decode(t, rr)["message"])
	assert.JSONEq(t, `{"users":["alice"]}`, api.get(t, "/users").Body.String())
}

func TestRoute_ChangePassword(t *testing.T) {
	api := newTestAPI(t, 0)
	require.Equal(t, http.StatusOK, api.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {"old"}}).Code)

	rr := api.postForm(t, "/change-password", url.Values{
		"username": {"alice"}, "old_password": {"wrong"}, "new_password": {"new"},
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, MsgInvalidCredentials, decode(t, rr)["message"])

	rr = api.postForm(t, "/change-password", url.Values{"username": {"alice"}, "old_password": {"old"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Missing or invalid field: new_password", decode(t, rr)["message"])

	rr = api.postForm(t, "/change-password", url.Values{
		"username": {"alice"}, "old_password": {"old"}, "new_password": {"new"},
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, MsgPasswordUpdated, decode(t, rr)["message"])

	rr = api.postForm(t, "/login", url.Values{"username": {"alice"}, "password": {"old"}})
	assert.Equal(t, MsgInvalidCredentials, decode(t, rr)["message"])
	rr = api.postForm(t, "/login", url.Values{"username": {"alice"}, "password": {"new"}})
	assert.Equal(t, "Welcome, alice!", decode(t, rr)["message"])
}

func TestRoute_ProfilePictures(t *testing.T) {
	api := newTestAPI(t, 0)
	picture := []byte{0xff, 0xd8, 0xff, 0xe0, 'j', 'f', 'i', 'f'}

	rr := api.get(t, "/profile-pic/alice")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, map[string]interface{}{"message": MsgProfilePicNotFound}, decode(t, rr))

	rr = api.upload(t, "alice", "avatar.PNG", picture)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]interface{}{"message": MsgProfilePicUploaded, "filename": "alice.jpg"}, decode(t, rr))

	rr = api.get(t, "/profile-pic/alice")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, ContentTypeJpeg, rr.Header().Get(ContentType))
	assert.Equal(t, picture, rr.Body.Bytes())

	// overwrite
	rr = api.upload(t, "alice", "second.jpeg", []byte("second"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "second", api.get(t, "/profile-pic/alice").Body.String())
}

func TestRoute_UploadProfilePicErrors(t *testing.T) {
	api := newTestAPI(t, 0)

	tests := []struct {
		name     string
		username string
		filename string
		wantCode int
		message  string
	}{
		{name: "bad extension", username: "alice", filename: "anim.gif", wantCode: http.StatusBadRequest, message: MsgInvalidFileType},
		{name: "missing username", filename: "me.png", wantCode: http.StatusBadRequest, message: MsgUsernameRequired},
		{name: "missing file", username: "alice", wantCode: http.StatusBadRequest, message: MsgFileRequired},
		{name: "path in username", username: "../alice", filename: "me.png", wantCode: http.StatusBadRequest, message: MsgInvalidUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.upload(t, tt.username, tt.filename, []byte("data"))
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, map[string]interface{}{"message": tt.message}, decode(t, rr))
		})
	}

	assert.Equal(t, http.StatusNotFound, api.get(t, "/profile-pic/alice").Code)
}

func TestRoute_UploadTooLarge(t *testing.T) {
	api := newTestAPI(t, 512)

	rr := api.upload(t, "alice", "big.jpg", bytes.Repeat([]byte("x"), 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, map[string]interface{}{"message": MsgRequestTooLarge}, decode(t, rr))
}

func TestRoute_StorageFailuresAreOpaque(t *testing.T) {
	storeErr := errors.New("disk I/O error: /var/lib/doorquest/database.db")

	repo := mocks.NewMockUserRepository(t)
	repo.On("AddUser", mock.Anything, mock.Anything).Return(int64(0), storeErr).Once()
	repo.On("ListUsernames", mock.Anything).Return(nil, storeErr).Once()
	repo.On("GetUserByUsername", mock.Anything, "alice").Return(nil, storeErr).Once()

	pictures := mocks.NewMockProfilePictureStore(t)
	pictures.On("Save", "alice", mock.Anything, "png").Return("", storeErr).Once()
	pictures.On("Load", "alice").Return(nil, storeErr).Once()

	h, err := hasher.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	api := newTestAPIWithService(t, userservice.NewUserService(repo, h, pictures, zerolog.NewNopLogger()), 0)

	responses := map[string]*httptest.ResponseRecorder{
		MsgFailedToRegister:  api.postForm(t, "/register", url.Values{"username": {"alice"}, "password": {"pw"}}),
		MsgFailedToListUsers: api.get(t, "/users"),
		MsgInternalError:     api.postForm(t, "/login", url.Values{"username": {"alice"}, "password": {"pw"}}),
		MsgFailedToSaveFile:  api.upload(t, "alice", "me.png", []byte("x")),
	}
	for message, rr := range responses {
		assert.Equal(t, http.StatusInternalServerError, rr.Code, message)
		assert.Equal(t, map[string]interface{}{"message": message}, decode(t, rr))
		assert.NotContains(t, rr.Body.String(), "disk I/O")
	}

	rr := api.get(t, "/profile-pic/alice")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "disk I/O")
}
