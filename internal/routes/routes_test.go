package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/payhasly/account_service/internal/account"
	"github.com/payhasly/account_service/internal/auth"
	"github.com/payhasly/account_service/internal/config"
	"github.com/payhasly/account_service/internal/events"
	"github.com/payhasly/account_service/internal/logging"
	"github.com/payhasly/account_service/internal/telemetry"
)

type testEnv struct {
	app      *fiber.App
	recorder *events.Recorder
	redis    *miniredis.Miniredis
}

func testConfig() config.Config {
	return config.Config{
		AppName:         "accounts-test",
		AppEnv:          "test",
		IdempotencyTTL:  time.Minute,
		JWTSecret:       "access-secret",
		RefreshSecret:   "refresh-secret",
		TokenIssuer:     "payhasly",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		BcryptCost:      bcrypt.MinCost,
		EventBackend:    "log",
		EventExchange:   "payhasly.accounts",
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	registry := prometheus.NewRegistry()
	rec := events.NewRecorder()
	app := fiber.New()
	err := Setup(app, Deps{
		Cfg:       testConfig(),
		Cache:     cache,
		Logger:    logging.Discard(),
		Metrics:   telemetry.NewMetrics(registry),
		Gatherer:  registry,
		Publisher: rec,
	})
	require.NoError(t, err)
	return &testEnv{app: app, recorder: rec, redis: mr}
}

type signupBody struct {
	User         account.PublicAccount `json:"user"`
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
	ExpiresIn    int64                 `json:"expiresIn"`
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) signup(t *testing.T, phone, password string) signupBody {
	t.Helper()
	resp := e.do(t, fiber.MethodPost, "/api/v1/accounts", `{"phone":"`+phone+`","password":"`+password+`"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out signupBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func bearer(token string) map[string]string {
	return map[string]string{fiber.HeaderAuthorization: "Bearer " + token}
}

func TestSignupIssuesTokensAndPublishesEvents(t *testing.T) {
	env := newTestEnv(t)

	out := env.signup(t, "61234567", "secret1")
	require.NotEmpty(t, out.User.ID)
	require.Equal(t, "61234567", out.User.Phone)
	require.False(t, out.User.IsAdmin)
	require.NotEmpty(t, out.AccessToken)
	require.NotEmpty(t, out.RefreshToken)
	require.Equal(t, int64(900), out.ExpiresIn)

	require.Equal(t, []string{events.CreateUserProfile, events.CreateUserFavorite}, env.recorder.RoutingKeys())
	require.True(t, env.redis.Exists("refresh:v1:"+out.User.ID), "refresh token stored for the account")

	resp := env.do(t, fiber.MethodGet, "/api/v1/accounts/"+out.User.ID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "password")
}

func TestSignupIgnoresAdminFlag(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, fiber.MethodPost, "/api/v1/accounts", `{"phone":"61234567","password":"secret1","isAdmin":true}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out signupBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.False(t, out.User.IsAdmin)
}

func TestSignupErrorsMapToStatusCodes(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "61234567", "secret1")
	env.recorder.Reset()

	resp := env.do(t, fiber.MethodPost, "/api/v1/accounts", `{"phone":"5123456","password":"secret1"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, fiber.MethodPost, "/api/v1/accounts", `{"phone":"61234567","password":"secret1"}`, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	require.Empty(t, env.recorder.Messages())
}

func TestSignupPublishFailureMarksResponseStale(t *testing.T) {
	env := newTestEnv(t)
	env.recorder.FailOn[events.CreateUserFavorite] = errors.New("bus down")

	resp := env.do(t, fiber.MethodPost, "/api/v1/accounts", `{"phone":"61234567","password":"secret1"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "stale", resp.Header.Get(account.EventSyncHeader))
	require.Equal(t, []string{events.CreateUserProfile}, env.recorder.RoutingKeys())
}

func TestSignupIsIdempotentWithKey(t *testing.T) {
	env := newTestEnv(t)
	headers := map[string]string{"Idempotency-Key": "signup-1"}
	body := `{"phone":"61234567","password":"secret1"}`

	first := env.do(t, fiber.MethodPost, "/api/v1/accounts", body, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	var created signupBody
	require.NoError(t, json.NewDecoder(first.Body).Decode(&created))
	require.NotEmpty(t, created.AccessToken)

	second := env.do(t, fiber.MethodPost, "/api/v1/accounts", body, headers)
	require.Equal(t, http.StatusCreated, second.StatusCode)
	require.Equal(t, "true", second.Header.Get("Idempotent-Replayed"))
	var replayed signupBody
	require.NoError(t, json.NewDecoder(second.Body).Decode(&replayed))
	require.Equal(t, created.User.ID, replayed.User.ID)
	require.Empty(t, replayed.AccessToken, "tokens are never replayed")
	require.Empty(t, replayed.RefreshToken)

	require.Len(t, env.recorder.Messages(), 2, "replayed request publishes nothing")
}

func TestSignupKeyReuseWithDifferentBodyIsRejected(t *testing.T) {
	env := newTestEnv(t)
	headers := map[string]string{"Idempotency-Key": "k"}

	first := env.do(t, fiber.MethodPost, "/api/v1/accounts", `{"phone":"61234567","password":"secret1"}`, headers)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := env.do(t, fiber.MethodPost, "/api/v1/accounts", `{"phone":"67777777","password":"secret1"}`, headers)
	require.Equal(t, http.StatusUnprocessableEntity, second.StatusCode)
	raw, err := io.ReadAll(second.Body)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "accessToken")
	require.NotContains(t, string(raw), "61234567")
	require.Len(t, env.recorder.Messages(), 2, "second signup neither replayed nor executed")
}

func TestUpdateRequiresAccessToken(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "61234567", "secret1")
	path := "/api/v1/accounts/" + out.User.ID

	resp := env.do(t, fiber.MethodPatch, path, `{"phone":"69999999"}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, fiber.MethodPatch, path, `{"phone":"69999999"}`, bearer(out.RefreshToken))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "refresh token is not an access token")
}

func TestUpdateOwnAccount(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "61234567", "secret1")
	env.recorder.Reset()

	resp := env.do(t, fiber.MethodPatch, "/api/v1/accounts/"+out.User.ID, `{"phone":"69999999"}`, bearer(out.AccessToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated account.PublicAccount
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	require.Equal(t, "69999999", updated.Phone)

	msgs := env.recorder.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, events.UpdateUser, msgs[0].RoutingKey)
	require.JSONEq(t, `{"id":"`+out.User.ID+`","phone":"69999999","isAdmin":false}`, string(msgs[0].Body))
}

func TestUpdateOtherAccountForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "61111111", "secret1")
	bob := env.signup(t, "62222222", "secret1")

	resp := env.do(t, fiber.MethodPatch, "/api/v1/accounts/"+bob.User.ID, `{"phone":"63333333"}`, bearer(alice.AccessToken))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, fiber.MethodPatch, "/api/v1/accounts/"+alice.User.ID, `{"isAdmin":true}`, bearer(alice.AccessToken))
	require.Equal(t, http.StatusForbidden, resp.StatusCode, "self-promotion to admin")
}

func adminToken(t *testing.T) string {
	t.Helper()
	cfg := testConfig()
	issuer := auth.NewIssuer(auth.IssuerConfig{
		AccessSecret:  []byte(cfg.JWTSecret),
		RefreshSecret: []byte(cfg.RefreshSecret),
		Issuer:        cfg.TokenIssuer,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	pair, err := issuer.Issue(auth.Claims{ID: "admin-1", Phone: "60000000", IsAdmin: true})
	require.NoError(t, err)
	return pair.AccessToken
}

func (e *testEnv) refresh(t *testing.T, refreshToken string) auth.TokenPair {
	t.Helper()
	resp := e.do(t, fiber.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+refreshToken+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair auth.TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	return pair
}

func TestRefreshFollowsAdminChanges(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "61234567", "secret1")
	other := env.signup(t, "63333333", "secret1")
	path := "/api/v1/accounts/" + out.User.ID
	otherPath := "/api/v1/accounts/" + other.User.ID
	admin := bearer(adminToken(t))

	resp := env.do(t, fiber.MethodPatch, path, `{"isAdmin":true}`, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	promoted := env.refresh(t, out.RefreshToken)
	resp = env.do(t, fiber.MethodPatch, otherPath, `{"phone":"64444444"}`, bearer(promoted.AccessToken))
	require.Equal(t, http.StatusOK, resp.StatusCode, "promotion applies from the next refresh")

	resp = env.do(t, fiber.MethodPatch, path, `{"isAdmin":false}`, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	demoted := env.refresh(t, promoted.RefreshToken)
	resp = env.do(t, fiber.MethodPatch, otherPath, `{"phone":"65555555"}`, bearer(demoted.AccessToken))
	require.Equal(t, http.StatusForbidden, resp.StatusCode, "demotion applies from the next refresh")

	resp = env.do(t, fiber.MethodPatch, path, `{"isAdmin":true}`, bearer(demoted.AccessToken))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestRefreshAfterAccountDeletedIsRejected(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "61234567", "secret1")

	resp := env.do(t, fiber.MethodDelete, "/api/v1/accounts/"+out.User.ID, "", bearer(adminToken(t)))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, fiber.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+out.RefreshToken+`"}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDeleteAccount(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "61234567", "secret1")
	env.recorder.Reset()
	path := "/api/v1/accounts/" + out.User.ID

	resp := env.do(t, fiber.MethodDelete, path, "", bearer(out.AccessToken))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, []string{events.DeleteUserProfile, events.DeleteUserFavorite}, env.recorder.RoutingKeys())
	require.False(t, env.redis.Exists("refresh:v1:"+out.User.ID), "refresh token revoked")

	resp = env.do(t, fiber.MethodGet, path, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// The access token is still valid until it expires; the account is gone.
	resp = env.do(t, fiber.MethodDelete, path, "", bearer(out.AccessToken))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Len(t, env.recorder.Messages(), 2)
}

func TestRefreshRotatesTokens(t *testing.T) {
	env := newTestEnv(t)
	out := env.signup(t, "61234567", "secret1")

	resp := env.do(t, fiber.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+out.RefreshToken+`"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	require.NotEqual(t, out.RefreshToken, pair.RefreshToken)

	resp = env.do(t, fiber.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+out.RefreshToken+`"}`, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "rotated token cannot be reused")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "61234567", "secret1")

	resp := env.do(t, fiber.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, fiber.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "createUserProfile")
}

func TestSetupRequiresStoresOutsideDev(t *testing.T) {
	cfg := testConfig()
	cfg.AppEnv = "production"

	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	require.Error(t, err)
}

func TestSetupRejectsUnavailableEventBackend(t *testing.T) {
	cfg := testConfig()
	cfg.EventBackend = "kafka"

	err := Setup(fiber.New(), Deps{Cfg: cfg, Logger: logging.Discard()})
	require.Error(t, err)
}
