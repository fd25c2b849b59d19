package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/complaint-tracker/internal/config"
	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	"github.com/yourusername/complaint-tracker/internal/middleware"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
	redisrepo "github.com/yourusername/complaint-tracker/internal/repository/redis"
	"github.com/yourusername/complaint-tracker/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testCookieName = "complaint_session"

// memUserRepo is an in-memory repository.UserRepository
type memUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*entity.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uint]*entity.User)}
}

func (r *memUserRepo) Create(user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return fmt.Errorf("%w: user already exists", apperrors.ErrConflict)
		}
	}
	if err := user.BeforeSave(nil); err != nil {
		return err
	}
	r.nextID++
	user.ID = r.nextID
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memUserRepo) find(match func(*entity.User) bool) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memUserRepo) GetByID(id uint) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.ID == id })
}

func (r *memUserRepo) GetByEmail(email string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Email == email })
}

func (r *memUserRepo) GetByUsername(username string) (*entity.User, error) {
	return r.find(func(u *entity.User) bool { return u.Username == username })
}

func (r *memUserRepo) Update(user *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return apperrors.ErrNotFound
	}
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memUserRepo) ExistsByUsername(username string) (bool, error) {
	_, err := r.GetByUsername(username)
	return err == nil, nil
}

func (r *memUserRepo) ExistsByEmail(email string) (bool, error) {
	_, err := r.GetByEmail(email)
	return err == nil, nil
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// memComplaintRepo is an in-memory repository.ComplaintRepository that
// attaches the author the way the Postgres repository preloads it
type memComplaintRepo struct {
	mu         sync.Mutex
	users      *memUserRepo
	nextID     uint
	complaints []*entity.Complaint
}

func newMemComplaintRepo(users *memUserRepo) *memComplaintRepo {
	return &memComplaintRepo{users: users}
}

func (r *memComplaintRepo) withUser(c entity.Complaint) entity.Complaint {
	if u, err := r.users.GetByID(c.UserID); err == nil {
		c.User = u
	}
	return c
}

func (r *memComplaintRepo) Create(complaint *entity.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	complaint.ID = r.nextID
	complaint.CreatedAt = time.Now()
	stored := *complaint
	r.complaints = append(r.complaints, &stored)
	return nil
}

func (r *memComplaintRepo) GetByID(id uint) (*entity.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.complaints {
		if c.ID == id {
			found := r.withUser(*c)
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memComplaintRepo) GetByPhoto(name string) (*entity.Complaint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.complaints {
		if c.Photo == name {
			found := *c
			return &found, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memComplaintRepo) Update(complaint *entity.Complaint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.complaints {
		if c.ID == complaint.ID {
			stored := *complaint
			stored.User = nil
			r.complaints[i] = &stored
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (r *memComplaintRepo) filter(keep func(*entity.Complaint) bool) []entity.Complaint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []entity.Complaint{}
	for i := len(r.complaints) - 1; i >= 0; i-- {
		if keep(r.complaints[i]) {
			out = append(out, r.withUser(*r.complaints[i]))
		}
	}
	return out
}

func (r *memComplaintRepo) ListByUser(userID uint) ([]entity.Complaint, error) {
	return r.filter(func(c *entity.Complaint) bool { return c.UserID == userID }), nil
}

func (r *memComplaintRepo) List(status entity.ComplaintStatus) ([]entity.Complaint, error) {
	return r.filter(func(c *entity.Complaint) bool { return status == "" || c.Status == status }), nil
}

func (r *memComplaintRepo) CountByUser(userID uint) (int64, error) {
	list, _ := r.ListByUser(userID)
	return int64(len(list)), nil
}

func (r *memComplaintRepo) CountAll() (int64, error) {
	list, _ := r.List("")
	return int64(len(list)), nil
}

func (r *memComplaintRepo) CountByStatus(status entity.ComplaintStatus) (int64, error) {
	list, _ := r.List(status)
	return int64(len(list)), nil
}

// stubProvider plays Google's token and userinfo endpoints
type stubProvider struct {
	mu          sync.Mutex
	claims      *service.Claims
	exchangeErr error
	exchanges   int
}

func (p *stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.test/auth?client_id=test&state=" + url.QueryEscape(state)
}

func (p *stubProvider) ExchangeCode(ctx context.Context, code string) (*service.TokenResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges++
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	return &service.TokenResponse{AccessToken: "access-" + code, TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (p *stubProvider) FetchClaims(ctx context.Context, accessToken string) (*service.Claims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	claims := *p.claims
	return &claims, nil
}

func (p *stubProvider) exchangeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchanges
}

// stubVerifier accepts exactly one ID token
type stubVerifier struct {
	valid  string
	claims *service.Claims
}

func (v *stubVerifier) Verify(ctx context.Context, idToken string) (*service.Claims, error) {
	if idToken != v.valid {
		return nil, fmt.Errorf("%w: signature mismatch", service.ErrGoogleTokenVerificationFailed)
	}
	claims := *v.claims
	return &claims, nil
}

type testApp struct {
	router     *gin.Engine
	users      *memUserRepo
	complaints *memComplaintRepo
	provider   *stubProvider
	redis      *miniredis.Miniredis
	uploadDir  string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessionRepo, err := redisrepo.NewSessionRepo(client)
	require.NoError(t, err)

	users := newMemUserRepo()
	complaints := newMemComplaintRepo(users)
	provider := &stubProvider{claims: &service.Claims{
		Subject:       "google-sub-1",
		Email:         "jane.doe@example.com",
		EmailVerified: true,
		Name:          "Jane Doe",
	}}
	verifier := &stubVerifier{valid: "good-id-token", claims: &service.Claims{
		Subject:       "google-sub-2",
		Email:         "id.token@example.com",
		EmailVerified: true,
		Name:          "Id Token",
	}}

	sessions, err := service.NewSessionService(sessionRepo, users, time.Hour)
	require.NoError(t, err)
	states, err := service.NewStateTokenManager(sessionRepo, 10*time.Minute)
	require.NoError(t, err)
	authService, err := service.NewAuthService(users, sessions, states, provider, verifier)
	require.NoError(t, err)
	complaintService, err := service.NewComplaintService(complaints, users, nil)
	require.NoError(t, err)

	cookies := middleware.NewSessionCookies(config.SessionConfig{
		CookieName: testCookieName,
		Secret:     "0123456789abcdef0123456789abcdef",
		TTL:        time.Hour,
	})
	uploads := config.UploadsConfig{Dir: t.TempDir(), MaxSizeBytes: 1 << 20}

	router := gin.New()
	RegisterRoutes(router, Routes{
		Auth:        NewAuthHandler(authService, sessions, complaintService, cookies),
		Complaints:  NewComplaintHandler(complaintService, cookies, uploads),
		Admin:       NewAdminHandler(complaintService),
		Sessions:    middleware.NewSessionMiddleware(cookies, sessions),
		RateLimiter: middleware.NewRateLimiter(client),
	})

	return &testApp{
		router:     router,
		users:      users,
		complaints: complaints,
		provider:   provider,
		redis:      mr,
		uploadDir:  uploads.Dir,
	}
}

// seedUser stores a password account; the password is hashed on Create
func (a *testApp) seedUser(t *testing.T, username, email, password, role string) *entity.User {
	t.Helper()
	user := &entity.User{Username: username, Email: email, PhoneNumber: "555-0100", Password: &password, Role: role}
	require.NoError(t, a.users.Create(user))
	return user
}

// browser carries the session cookie between requests like a real client
type browser struct {
	t      *testing.T
	app    *testApp
	cookie *http.Cookie
}

func (a *testApp) browser(t *testing.T) *browser {
	return &browser{t: t, app: a}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	req.RemoteAddr = "192.0.2.10:1234"
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	w := httptest.NewRecorder()
	b.app.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name != testCookieName {
			continue
		}
		if c.MaxAge < 0 {
			b.cookie = nil
		} else {
			b.cookie = &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	return w
}

func (b *browser) get(path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return b.do(req)
}

func (b *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

func (b *browser) post(path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return b.do(req)
}

// login signs the browser in with a password
func (b *browser) login(username, password string) {
	b.t.Helper()
	w := b.postForm("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(b.t, http.StatusSeeOther, w.Code)
	require.Equal(b.t, "/dashboard", w.Header().Get("Location"))
}
