package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	"github.com/yourusername/complaint-tracker/internal/domain/repository"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
)

const (
	minUsernameLength = 3
	minPasswordLength = 6

	// usernameSuffixAttempts bounds the ".2", ".3", ... probe before a random
	// suffix is used
	usernameSuffixAttempts = 20
)

// AuthService authenticates visitors by password or through Google and
// binds the result to a server-side session.
type AuthService struct {
	userRepo repository.UserRepository
	sessions *SessionService
	states   *StateTokenManager
	provider IdentityProvider
	idTokens IDTokenVerifier
	now      func() time.Time
}

// RegisterInput holds the registration form
type RegisterInput struct {
	Username    string
	Email       string
	PhoneNumber string
	Password    string
}

// CallbackInput holds the query parameters of the provider redirect
type CallbackInput struct {
	Code  string
	State string
	Error string
}

func NewAuthService(
	userRepo repository.UserRepository,
	sessions *SessionService,
	states *StateTokenManager,
	provider IdentityProvider,
	idTokens IDTokenVerifier,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if sessions == nil {
		return nil, fmt.Errorf("SessionService is required for AuthService")
	}
	if states == nil {
		return nil, fmt.Errorf("StateTokenManager is required for AuthService")
	}
	if provider == nil {
		return nil, fmt.Errorf("IdentityProvider is required for AuthService")
	}
	// idTokens may be nil: POST /auth/google then answers with a verification error
	return &AuthService{
		userRepo: userRepo,
		sessions: sessions,
		states:   states,
		provider: provider,
		idTokens: idTokens,
		now:      time.Now,
	}, nil
}

// RegisterUser creates a password account
func (s *AuthService) RegisterUser(input RegisterInput) (*entity.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	input.PhoneNumber = strings.TrimSpace(input.PhoneNumber)

	if len(input.Username) < minUsernameLength || len(input.Username) > entity.UsernameMaxLength {
		return nil, fmt.Errorf("%w: username must be between %d and %d characters", apperrors.ErrValidation, minUsernameLength, entity.UsernameMaxLength)
	}
	if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		return nil, fmt.Errorf("%w: invalid email address", apperrors.ErrValidation)
	}
	if input.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: phone number is required", apperrors.ErrValidation)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperrors.ErrValidation, minPasswordLength)
	}

	taken, err := s.userRepo.ExistsByUsername(input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: %w: username already exists", apperrors.ErrValidation, apperrors.ErrConflict)
	}
	taken, err = s.userRepo.ExistsByEmail(input.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("%w: %w: email already exists", apperrors.ErrValidation, apperrors.ErrConflict)
	}

	password := input.Password
	user := &entity.User{
		Username:    input.Username,
		Email:       input.Email,
		PhoneNumber: input.PhoneNumber,
		Password:    &password,
		Role:        entity.RoleUser,
	}
	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrValidation, err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("[AuthService] registered user ID=%d (%s)", user.ID, user.Username)
	return user, nil
}

// PasswordLogin checks the credentials and establishes a session. Unknown
// usernames, wrong passwords and password-less accounts all fail the same way.
func (s *AuthService) PasswordLogin(ctx context.Context, sessionID, username, password string) (*entity.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByUsername(username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[AuthService] login failed: unknown username %q", username)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if account, err := user.Account(); err != nil || !account.HasPassword() {
		log.Printf("[AuthService] login failed for user ID=%d: account has no password", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !user.CheckPassword(password) {
		log.Printf("[AuthService] login failed for user ID=%d", user.ID)
		return nil, ErrInvalidCredentials
	}

	return s.sessions.Establish(ctx, sessionID, user)
}

// BeginFederation binds a fresh state token to the session and returns the
// provider consent URL.
func (s *AuthService) BeginFederation(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: session is required to start sign-in", apperrors.ErrValidation)
	}
	token, err := s.states.Generate()
	if err != nil {
		return "", err
	}
	if err := s.states.Bind(ctx, sessionID, token); err != nil {
		return "", err
	}
	return s.provider.AuthCodeURL(token), nil
}

// CompleteFederation handles the provider redirect. The pending state is
// consumed before anything else, so it is gone after any outcome.
func (s *AuthService) CompleteFederation(ctx context.Context, sessionID string, in CallbackInput) (*entity.Session, error) {
	stateOK := s.states.ConsumeAndValidate(ctx, sessionID, in.State)

	if in.Error != "" {
		log.Printf("[AuthService] provider returned error=%q for session %s", in.Error, sessionID)
		return nil, fmt.Errorf("%w: %s", ErrFederationDenied, in.Error)
	}
	if !stateOK {
		log.Printf("[AuthService] state mismatch for session %s", sessionID)
		return nil, ErrCSRF
	}
	if strings.TrimSpace(in.Code) == "" {
		return nil, fmt.Errorf("%w: authorization code is missing", apperrors.ErrValidation)
	}

	token, err := s.provider.ExchangeCode(ctx, in.Code)
	if err != nil {
		log.Printf("[AuthService] code exchange failed: %v", err)
		return nil, err
	}
	claims, err := s.provider.FetchClaims(ctx, token.AccessToken)
	if err != nil {
		log.Printf("[AuthService] claims fetch failed: %v", err)
		return nil, err
	}

	return s.signInWithClaims(ctx, sessionID, claims)
}

// LoginWithIDToken signs in with a Google ID token obtained by a browser
// client, skipping the redirect handshake.
func (s *AuthService) LoginWithIDToken(ctx context.Context, sessionID, idToken string) (*entity.Session, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("%w: missing idToken", apperrors.ErrValidation)
	}
	if s.idTokens == nil {
		return nil, fmt.Errorf("%w: id token sign-in is not configured", ErrGoogleTokenVerificationFailed)
	}
	claims, err := s.idTokens.Verify(ctx, idToken)
	if err != nil {
		log.Printf("[AuthService] id token rejected: %v", err)
		return nil, err
	}
	return s.signInWithClaims(ctx, sessionID, claims)
}

// Logout clears the session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// CurrentUser re-reads the session's user from the store
func (s *AuthService) CurrentUser(ctx context.Context, sessionID string) (*entity.User, error) {
	return s.sessions.CurrentUser(ctx, sessionID)
}

func (s *AuthService) signInWithClaims(ctx context.Context, sessionID string, claims *Claims) (*entity.Session, error) {
	if claims == nil || claims.Email == "" || !claims.EmailVerified {
		return nil, ErrIdentityUnverified
	}
	if claims.Subject == "" {
		return nil, &ProviderError{Op: "claims", Reason: "subject missing"}
	}

	user, err := s.reconcile(claims)
	if err != nil {
		return nil, err
	}
	return s.sessions.Establish(ctx, sessionID, user)
}

// reconcile maps verified claims onto a local user, matched by email.
// An existing user keeps its username and password; a new one gets a
// derived username and no password.
func (s *AuthService) reconcile(claims *Claims) (*entity.User, error) {
	user, err := s.userRepo.GetByEmail(claims.Email)
	switch {
	case err == nil:
		return s.linkExisting(user, claims)
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}

	username, err := s.uniqueUsername(entity.DeriveUsername(claims.Name, claims.Email, s.now()))
	if err != nil {
		return nil, err
	}
	subject := claims.Subject
	user = &entity.User{
		Username:      username,
		Email:         claims.Email,
		GoogleID:      &subject,
		EmailVerified: true,
		Role:          entity.RoleUser,
	}
	if claims.Picture != "" {
		picture := claims.Picture
		user.PictureURL = &picture
	}

	if err := s.userRepo.Create(user); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			return nil, fmt.Errorf("failed to create federated user: %w", err)
		}
		// a concurrent callback for the same email won the insert
		existing, lookupErr := s.userRepo.GetByEmail(claims.Email)
		if lookupErr != nil {
			return nil, fmt.Errorf("failed to create federated user: %w", err)
		}
		return s.linkExisting(existing, claims)
	}

	log.Printf("[AuthService] created federated user ID=%d (%s)", user.ID, user.Username)
	return user, nil
}

func (s *AuthService) linkExisting(user *entity.User, claims *Claims) (*entity.User, error) {
	subject := claims.Subject
	user.GoogleID = &subject
	if claims.Picture != "" {
		picture := claims.Picture
		user.PictureURL = &picture
	}
	user.EmailVerified = true

	if err := s.userRepo.Update(user); err != nil {
		return nil, fmt.Errorf("failed to update federated user: %w", err)
	}
	return user, nil
}

// uniqueUsername returns base, or base with the smallest free ".N" suffix
func (s *AuthService) uniqueUsername(base string) (string, error) {
	candidate := base
	for n := 2; n <= usernameSuffixAttempts+1; n++ {
		taken, err := s.userRepo.ExistsByUsername(candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check username availability: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = withSuffix(base, fmt.Sprintf(".%d", n))
	}

	suffix, err := generateRandomHex(3)
	if err != nil {
		return "", err
	}
	return withSuffix(base, "."+suffix), nil
}

// withSuffix keeps the result within the username column size
func withSuffix(base, suffix string) string {
	if limit := entity.UsernameMaxLength - len(suffix); len(base) > limit {
		base = strings.TrimRight(base[:limit], ".")
	}
	return base + suffix
}

func generateRandomHex(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random suffix: %w", err)
	}
	return hex.EncodeToString(b), nil
}
