package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	redisrepo "github.com/yourusername/complaint-tracker/internal/repository/redis"
)

// MockUserRepository implements repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) Update(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) ExistsByUsername(username string) (bool, error) {
	args := m.Called(username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(email string) (bool, error) {
	args := m.Called(email)
	return args.Bool(0), args.Error(1)
}

// MockComplaintRepository implements repository.ComplaintRepository
type MockComplaintRepository struct {
	mock.Mock
}

func (m *MockComplaintRepository) Create(complaint *entity.Complaint) error {
	args := m.Called(complaint)
	return args.Error(0)
}

func (m *MockComplaintRepository) GetByID(id uint) (*entity.Complaint, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) GetByPhoto(name string) (*entity.Complaint, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) Update(complaint *entity.Complaint) error {
	args := m.Called(complaint)
	return args.Error(0)
}

func (m *MockComplaintRepository) ListByUser(userID uint) ([]entity.Complaint, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) List(status entity.ComplaintStatus) ([]entity.Complaint, error) {
	args := m.Called(status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) CountByUser(userID uint) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockComplaintRepository) CountAll() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockComplaintRepository) CountByStatus(status entity.ComplaintStatus) (int64, error) {
	args := m.Called(status)
	return args.Get(0).(int64), args.Error(1)
}

// MockIdentityProvider implements IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) AuthCodeURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockIdentityProvider) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TokenResponse), args.Error(1)
}

func (m *MockIdentityProvider) FetchClaims(ctx context.Context, accessToken string) (*Claims, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

// MockIDTokenVerifier implements IDTokenVerifier
type MockIDTokenVerifier struct {
	mock.Mock
}

func (m *MockIDTokenVerifier) Verify(ctx context.Context, idToken string) (*Claims, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Claims), args.Error(1)
}

// MockNotifier implements Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyStatusChange(ctx context.Context, toEmail string, complaint *entity.Complaint) error {
	args := m.Called(ctx, toEmail, complaint)
	return args.Error(0)
}

// newTestSessionRepo returns a Redis-backed session repository on miniredis
func newTestSessionRepo(t *testing.T) (*redisrepo.SessionRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo, err := redisrepo.NewSessionRepo(client)
	require.NoError(t, err)
	return repo, mr
}

// sequentialIDs returns an id generator yielding sess-1, sess-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("sess-%d", n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
