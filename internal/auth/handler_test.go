package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/acacia-sms/acacia/internal/access"
	"github.com/acacia-sms/acacia/internal/auth"
	"github.com/acacia-sms/acacia/internal/shared"
	_ "github.com/acacia-sms/acacia/testing"
)

type stubRepo struct {
	user     *auth.User
	sessions map[string]int64
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) FindByID(ctx context.Context, id int64) (*auth.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, shared.ErrNotFound
	}
	return s.user, nil
}

func (s *stubRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	if s.sessions == nil {
		s.sessions = make(map[string]int64)
	}
	s.sessions[id] = userID
	return nil
}

func (s *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// committingWriter persists the session right before the first byte of the
// response, so Set-Cookie headers make it out.
type committingWriter struct {
	http.ResponseWriter
	sessions  *shared.SessionManager
	sess      *shared.Session
	req       *http.Request
	committed bool
}

func (w *committingWriter) WriteHeader(statusCode int) {
	if !w.committed {
		w.committed = true
		_ = w.sessions.Commit(w.req.Context(), w.ResponseWriter, w.req, w.sess)
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *committingWriter) Write(data []byte) (int, error) {
	if !w.committed {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func newServer(t *testing.T, repo auth.Repository) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")
	service := auth.NewService(repo)
	handler := auth.NewHandler(discardLogger(), service, sessions, csrf, access.NewCategoryResolver(nil))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			if err != nil {
				t.Fatalf("load session: %v", err)
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			req = req.WithContext(ctx)
			next.ServeHTTP(&committingWriter{ResponseWriter: w, sessions: sessions, sess: sess, req: req}, req)
		})
	})
	r.Use(auth.IdentityMiddleware(service, discardLogger()))
	handler.MountRoutes(r)
	return r
}

func teacherAccount(t *testing.T, password string) *auth.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return &auth.User{
		ID:           1,
		Email:        "teacher@school.example",
		Name:         "Teacher",
		PasswordHash: string(hashed),
		MainRole:     "teacher",
		Active:       true,
	}
}

func postLogin(server http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)
	return res
}

func TestLoginSuccess(t *testing.T) {
	repo := &stubRepo{user: teacherAccount(t, "correct-password")}
	server := newServer(t, repo)

	res := postLogin(server, `{"email":"teacher@school.example","password":"correct-password"}`)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}

	var payload struct {
		UserID    int64  `json:"user_id"`
		MainRole  string `json:"main_role"`
		Category  string `json:"category"`
		CSRFToken string `json:"csrf_token"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.UserID != 1 || payload.MainRole != "teacher" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Category != "operator" {
		t.Fatalf("category = %q, want operator", payload.Category)
	}
	if payload.CSRFToken == "" {
		t.Fatal("missing csrf token")
	}
	if len(repo.sessions) != 1 {
		t.Fatalf("registered sessions = %d, want 1", len(repo.sessions))
	}
}

func TestLoginWrongPassword(t *testing.T) {
	server := newServer(t, &stubRepo{user: teacherAccount(t, "correct-password")})

	res := postLogin(server, `{"email":"teacher@school.example","password":"wrong-password"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	user := teacherAccount(t, "correct-password")
	user.Active = false
	server := newServer(t, &stubRepo{user: user})

	res := postLogin(server, `{"email":"teacher@school.example","password":"correct-password"}`)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
}

func TestLoginValidation(t *testing.T) {
	server := newServer(t, &stubRepo{user: teacherAccount(t, "correct-password")})

	res := postLogin(server, `{"email":"not-an-email","password":"short"}`)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestMeRequiresIdentity(t *testing.T) {
	server := newServer(t, &stubRepo{user: teacherAccount(t, "correct-password")})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
}

func TestMeAfterLogin(t *testing.T) {
	server := newServer(t, &stubRepo{user: teacherAccount(t, "correct-password")})

	login := postLogin(server, `{"email":"teacher@school.example","password":"correct-password"}`)
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d", login.Code)
	}
	cookies := login.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie issued")
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	server.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", res.Code, res.Body.String())
	}
	var payload struct {
		MainRole string `json:"main_role"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.MainRole != "teacher" || payload.Category != "operator" {
		t.Fatalf("payload = %+v", payload)
	}
}
