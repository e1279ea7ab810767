package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"
	"golang.org/x/crypto/bcrypt"

	"github.com/xxxsen/tripauth/internal/handler"
	"github.com/xxxsen/tripauth/internal/mailer"
	"github.com/xxxsen/tripauth/internal/middleware"
	"github.com/xxxsen/tripauth/internal/pkg/password"
	"github.com/xxxsen/tripauth/internal/repo"
	"github.com/xxxsen/tripauth/internal/service"
)

var otpPattern = regexp.MustCompile(`(?m)^## (\d{6})$`)

type captureMailer struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (m *captureMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.msgs)
}

func (m *captureMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.msgs)
	match := otpPattern.FindStringSubmatch(m.msgs[len(m.msgs)-1].TextBody)
	require.Len(t, match, 2)
	return match[1]
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type routerOptions struct {
	clock *testClock
	// wrapUsers decorates the user store seen by the recovery service.
	wrapUsers func(service.UserStore) service.UserStore
}

func setupRouter(t *testing.T) (http.Handler, *captureMailer) {
	t.Helper()
	return setupRouterWith(t, routerOptions{})
}

func setupRouterWith(t *testing.T, opts routerOptions) (http.Handler, *captureMailer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := repo.NewMemoryDB()
	mail := &captureMailer{}
	policy := password.DefaultPolicy()
	secrets := service.NewSecretStore(db.Secrets(), db, bcrypt.MinCost)
	if opts.clock != nil {
		secrets.SetClock(opts.clock.Now)
	}
	var users service.UserStore = db.Users()
	if opts.wrapUsers != nil {
		users = opts.wrapUsers(users)
	}
	recovery := service.NewRecoveryService(users, secrets, db, mail, nil, service.RecoveryOptions{
		OTPExpireMinutes:        10,
		ResetTokenExpireMinutes: 15,
		HashCost:                bcrypt.MinCost,
		PasswordPolicy:          policy,
		ProductName:             "KBT Trip Builder",
	})
	auth := service.NewAuthService(db.Users(), policy, bcrypt.MinCost)

	deps := handler.RouterDeps{
		Auth:     handler.NewAuthHandler(auth),
		Recovery: handler.NewRecoveryHandler(recovery),
	}
	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)
	return engine, mail
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) (int, envelope) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return resp.Code, env
}

func registerUser(t *testing.T, router http.Handler, email, pass string) {
	t.Helper()
	code, env := postJSON(t, router, "/api/v1/auth/register", map[string]string{
		"first_name": "Trip",
		"last_name":  "User",
		"email":      email,
		"password":   pass,
	})
	require.Equal(t, http.StatusOK, code, env)
}
