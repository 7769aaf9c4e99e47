package backend_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/smartgreen-auth/backend"
	"github.com/jrsteele09/smartgreen-auth/internal/config"
	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey   = "anon-key"
	testClientID = "smartgreen-web"
)

// fakeBackend is an httptest auth backend with swappable handlers.
type fakeBackend struct {
	server       *httptest.Server
	tokenCalls   atomic.Int32
	userCalls    atomic.Int32
	tokenHandler http.HandlerFunc
	userHandler  http.HandlerFunc

	mu            sync.Mutex
	lastTokenForm map[string]string
	lastAPIKey    string
	lastQuery     string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		fb.tokenCalls.Add(1)
		_ = r.ParseForm()
		fb.mu.Lock()
		fb.lastTokenForm = map[string]string{}
		for k := range r.PostForm {
			fb.lastTokenForm[k] = r.PostForm.Get(k)
		}
		fb.lastAPIKey = r.Header.Get("apikey")
		fb.lastQuery = r.URL.Query().Get("grant_type")
		fb.mu.Unlock()
		fb.tokenHandler(w, r)
	})
	mux.HandleFunc("GET /auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		fb.userCalls.Add(1)
		fb.userHandler(w, r)
	})
	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) form() map[string]string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastTokenForm
}

func (fb *fakeBackend) grantTypeQuery() string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastQuery
}

func (fb *fakeBackend) apiKey() string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.lastAPIKey
}

func (fb *fakeBackend) provider() config.Provider {
	return config.Provider{
		Name:         "google",
		AuthURL:      fb.server.URL + "/auth/v1/authorize?provider=google",
		TokenURL:     fb.server.URL + "/auth/v1/token",
		ClientID:     testClientID,
		ClientSecret: "shh",
		RedirectURL:  "http://localhost:8080/auth/callback",
	}
}

func (fb *fakeBackend) client(t *testing.T, opts ...backend.Option) *backend.Client {
	t.Helper()
	c, err := backend.NewClient(fb.server.URL, testAPIKey, opts...)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func tokenBody(extra map[string]any) map[string]any {
	body := map[string]any{
		"access_token":  "backend-access",
		"refresh_token": "backend-refresh",
		"token_type":    "bearer",
		"expires_in":    3600,
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func TestExchangeCode_EmbeddedUser(t *testing.T) {
	fb := newFakeBackend(t)
	fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenBody(map[string]any{
			"user": map[string]any{
				"id":            "user-123",
				"email":         "tani@example.com",
				"user_metadata": map[string]any{"full_name": "Pak Tani"},
			},
		}))
	}

	tokens, err := fb.client(t).ExchangeCode(context.Background(), fb.provider(), "abc", "")
	require.NoError(t, err)
	require.Equal(t, "backend-access", tokens.AccessToken)
	require.Equal(t, "backend-refresh", tokens.RefreshToken)
	require.Equal(t, backend.Identity{ID: "user-123", Email: "tani@example.com", Name: "Pak Tani"}, tokens.Identity)

	require.EqualValues(t, 1, fb.tokenCalls.Load())
	require.Zero(t, fb.userCalls.Load())
	require.Equal(t, "authorization_code", fb.form()["grant_type"])
	require.Equal(t, "abc", fb.form()["code"])
	require.Equal(t, testClientID, fb.form()["client_id"])
	require.Equal(t, "shh", fb.form()["client_secret"])
	require.Equal(t, "http://localhost:8080/auth/callback", fb.form()["redirect_uri"])
	require.NotContains(t, fb.form(), "code_verifier")
	require.Equal(t, testAPIKey, fb.apiKey())
}

func TestExchangeCode_SendsCodeVerifier(t *testing.T) {
	fb := newFakeBackend(t)
	fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenBody(map[string]any{"user": map[string]any{"id": "u"}}))
	}

	_, err := fb.client(t).ExchangeCode(context.Background(), fb.provider(), "abc", "verifier-value")
	require.NoError(t, err)
	require.Equal(t, "verifier-value", fb.form()["code_verifier"])
}

func TestExchangeCode_UserEndpointFallback(t *testing.T) {
	fb := newFakeBackend(t)
	fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenBody(nil))
	}
	headers := make(chan http.Header, 1)
	fb.userHandler = func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		writeJSON(w, http.StatusOK, map[string]any{"id": "user-9", "email": "siti@example.com"})
	}

	tokens, err := fb.client(t).ExchangeCode(context.Background(), fb.provider(), "abc", "")
	require.NoError(t, err)
	require.Equal(t, "user-9", tokens.Identity.ID)
	require.Equal(t, "siti@example.com", tokens.Identity.Name)
	got := <-headers
	require.Equal(t, "Bearer backend-access", got.Get("Authorization"))
	require.Equal(t, testAPIKey, got.Get("apikey"))
	require.EqualValues(t, 1, fb.userCalls.Load())
}

func TestExchangeCode_UserEndpointRejects(t *testing.T) {
	fb := newFakeBackend(t)
	fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenBody(nil))
	}
	fb.userHandler = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "jwt expired", http.StatusUnauthorized)
	}

	_, err := fb.client(t).ExchangeCode(context.Background(), fb.provider(), "abc", "")
	require.ErrorIs(t, err, apperrors.ErrTokenExchangeFailed)
	require.Contains(t, err.Error(), "401")
}

func TestExchangeCode_BackendRejection(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		want       string
		wantStatus int
	}{
		{
			name: "reused code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error":             "invalid_grant",
					"error_description": "code already used",
				})
			},
			want:       "invalid_grant: code already used",
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "unauthorized code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
			},
			want:       "backend returned 401: invalid_grant",
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "plain text 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream exploded", http.StatusInternalServerError)
			},
			want:       "upstream exploded",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "malformed success body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte("{not json"))
			},
			want:       "malformed backend response",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "success without access token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"token_type": "bearer"})
			},
			want:       "malformed backend response",
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			fb.tokenHandler = tt.handler

			_, err := fb.client(t).ExchangeCode(context.Background(), fb.provider(), "abc", "")
			require.ErrorIs(t, err, apperrors.ErrTokenExchangeFailed)
			require.Equal(t, apperrors.KindTokenExchangeFailed, apperrors.KindOf(err))
			require.Contains(t, err.Error(), tt.want)
			require.EqualValues(t, 1, fb.tokenCalls.Load(), "exchange must not be retried")

			var authErr *apperrors.AuthError
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, tt.wantStatus, authErr.HTTPStatus())
		})
	}
}

func TestExchangeCode_Unreachable(t *testing.T) {
	fb := newFakeBackend(t)
	provider := fb.provider()
	c := fb.client(t)
	fb.server.Close()

	_, err := c.ExchangeCode(context.Background(), provider, "abc", "")
	require.ErrorIs(t, err, apperrors.ErrBackendUnreachable)
	require.Equal(t, http.StatusInternalServerError, apperrors.KindOf(err).HTTPStatus())
}

func TestExchangeCode_Timeout(t *testing.T) {
	fb := newFakeBackend(t)
	fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fb.client(t).ExchangeCode(ctx, fb.provider(), "abc", "")
	require.ErrorIs(t, err, apperrors.ErrBackendUnreachable)
}

func TestExchangeCode_MissingCode(t *testing.T) {
	fb := newFakeBackend(t)
	_, err := fb.client(t).ExchangeCode(context.Background(), fb.provider(), "", "")
	require.ErrorIs(t, err, apperrors.ErrMissingAuthorizationCode)
	require.Zero(t, fb.tokenCalls.Load())
}

// idTokenFixture signs RS256 id_tokens and verifies them with a static key set.
type idTokenFixture struct {
	key      *rsa.PrivateKey
	issuer   string
	verifier *oidc.IDTokenVerifier
}

func newIDTokenFixture(t *testing.T) *idTokenFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	issuer := "https://accounts.example.com"
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return &idTokenFixture{
		key:      key,
		issuer:   issuer,
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: testClientID}),
	}
}

func (f *idTokenFixture) sign(t *testing.T, key *rsa.PrivateKey, subject string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":   f.issuer,
		"aud":   testClientID,
		"sub":   subject,
		"email": "budi@example.com",
		"name":  "Budi",
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestExchangeCode_IDToken(t *testing.T) {
	f := newIDTokenFixture(t)
	fb := newFakeBackend(t)
	idToken := f.sign(t, f.key, "oidc-sub-1")
	fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenBody(map[string]any{"id_token": idToken}))
	}

	tokens, err := fb.client(t, backend.WithIDTokenVerifier(f.verifier)).
		ExchangeCode(context.Background(), fb.provider(), "abc", "")
	require.NoError(t, err)
	require.Equal(t, backend.Identity{ID: "oidc-sub-1", Email: "budi@example.com", Name: "Budi"}, tokens.Identity)
	require.Zero(t, fb.userCalls.Load())
}

func TestExchangeCode_IDTokenBadSignature(t *testing.T) {
	f := newIDTokenFixture(t)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fb := newFakeBackend(t)
	idToken := f.sign(t, otherKey, "oidc-sub-1")
	fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, tokenBody(map[string]any{"id_token": idToken}))
	}

	_, err = fb.client(t, backend.WithIDTokenVerifier(f.verifier)).
		ExchangeCode(context.Background(), fb.provider(), "abc", "")
	require.ErrorIs(t, err, apperrors.ErrTokenExchangeFailed)
	require.Contains(t, err.Error(), "id_token")
}

func TestPasswordLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, tokenBody(map[string]any{"user": map[string]any{"id": "user-5"}}))
		}

		tokens, err := fb.client(t).PasswordLogin(context.Background(), "a@b.c", "secret")
		require.NoError(t, err)
		require.Equal(t, "user-5", tokens.Identity.ID)
		require.Equal(t, "password", fb.grantTypeQuery())
		require.Equal(t, "a@b.c", fb.form()["username"])
		require.Equal(t, "secret", fb.form()["password"])
	})

	t.Run("rejected credentials", func(t *testing.T) {
		fb := newFakeBackend(t)
		fb.tokenHandler = func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		}

		_, err := fb.client(t).PasswordLogin(context.Background(), "a@b.c", "wrong")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, "invalid_grant", apperrors.KindOf(err).String())
	})

	t.Run("empty credentials", func(t *testing.T) {
		fb := newFakeBackend(t)
		_, err := fb.client(t).PasswordLogin(context.Background(), "", "")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Zero(t, fb.tokenCalls.Load())
	})
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := backend.NewClient("not a url", testAPIKey)
	require.Error(t, err)
}

func TestProviderConfig(t *testing.T) {
	p := config.Provider{
		AuthURL:   "https://backend.example/auth/v1/authorize?provider=google",
		TokenURL:  "https://backend.example/auth/v1/token",
		ClientID:  testClientID,
		ScopeList: "openid email",
	}
	conf := backend.ProviderConfig(p)
	require.Equal(t, []string{"openid", "email"}, conf.Scopes)
	require.Contains(t, conf.AuthCodeURL("xyz"), "state=xyz")
	require.Contains(t, conf.AuthCodeURL("xyz"), "provider=google")
}
