package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	"github.com/yourusername/complaint-tracker/internal/middleware"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
	"github.com/yourusername/complaint-tracker/internal/service"
)

// AuthHandler serves password login, registration and Google sign-in
type AuthHandler struct {
	authService      *service.AuthService
	sessionService   *service.SessionService
	complaintService *service.ComplaintService
	cookies          *middleware.SessionCookies
}

func NewAuthHandler(
	authService *service.AuthService,
	sessionService *service.SessionService,
	complaintService *service.ComplaintService,
	cookies *middleware.SessionCookies,
) *AuthHandler {
	return &AuthHandler{
		authService:      authService,
		sessionService:   sessionService,
		complaintService: complaintService,
		cookies:          cookies,
	}
}

// LoginRequest accepts both form posts and JSON bodies
type LoginRequest struct {
	Username string `form:"username" json:"username"`
	Password string `form:"password" json:"password"`
}

// RegisterRequest mirrors the registration form; the phone field is "number"
type RegisterRequest struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Number   string `form:"number" json:"number"`
	Password string `form:"password" json:"password"`
}

// GoogleIDTokenRequest is the body of POST /auth/google
type GoogleIDTokenRequest struct {
	IDToken string `json:"idToken"`
}

// LoginPage returns the flash messages queued for the login page
func (h *AuthHandler) LoginPage(c *gin.Context) {
	flashes := h.cookies.Flashes(c.Writer, c.Request, middleware.FlashError, middleware.FlashMessage)
	c.JSON(http.StatusOK, gin.H{
		"errors":           flashes[middleware.FlashError],
		"messages":         flashes[middleware.FlashMessage],
		"google_login_url": "/oauth2/authorize/google",
	})
}

// Login handles POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		h.redirectWithError(c, "/login", fmt.Errorf("%w: invalid login request", apperrors.ErrValidation))
		return
	}

	sessionID, err := h.ensureSession(c)
	if err != nil {
		h.redirectWithError(c, "/login", err)
		return
	}

	session, err := h.authService.PasswordLogin(c.Request.Context(), sessionID, req.Username, req.Password)
	if err != nil {
		h.redirectWithError(c, "/login", err)
		return
	}
	h.signedIn(c, session)
}

// RegisterPage returns the public complaint counters
func (h *AuthHandler) RegisterPage(c *gin.Context) {
	stats, err := h.complaintService.Stats()
	if err != nil {
		log.Printf("[AuthHandler] failed to load complaint stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "error_type": "internal_server_error"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Register handles POST /register
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request data", "error_type": "validation_error"})
		return
	}

	user, err := h.authService.RegisterUser(service.RegisterInput{
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.Number,
		Password:    req.Password,
	})
	if err != nil {
		status, errorType, message := describeAuthError(err)
		if status >= http.StatusInternalServerError {
			log.Printf("[AuthHandler] registration failed: %v", err)
		}
		c.JSON(status, gin.H{"error": message, "error_type": errorType})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful. Please sign in.",
		"user":    user,
	})
}

// Logout handles GET /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)
	if err := h.authService.Logout(c.Request.Context(), sessionID); err != nil {
		log.Printf("[AuthHandler] failed to clear session: %v", err)
	}
	if err := h.cookies.Clear(c.Writer, c.Request); err != nil {
		log.Printf("[AuthHandler] failed to clear session cookie: %v", err)
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

// AuthorizeGoogle redirects the browser to the Google consent page
func (h *AuthHandler) AuthorizeGoogle(c *gin.Context) {
	sessionID, err := h.ensureSession(c)
	if err != nil {
		h.redirectWithError(c, "/login", err)
		return
	}

	url, err := h.authService.BeginFederation(c.Request.Context(), sessionID)
	if err != nil {
		h.redirectWithError(c, "/login", err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback completes the authorization code flow
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	session, err := h.authService.CompleteFederation(c.Request.Context(), c.GetString(middleware.ContextSessionID), service.CallbackInput{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	})
	if err != nil {
		h.redirectWithError(c, "/login", err)
		return
	}
	h.signedIn(c, session)
}

// GoogleIDToken signs in with an ID token obtained by the browser
func (h *AuthHandler) GoogleIDToken(c *gin.Context) {
	var req GoogleIDTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body", "error_type": "validation_error"})
		return
	}

	sessionID, err := h.ensureSession(c)
	if err == nil {
		var session *entity.Session
		session, err = h.authService.LoginWithIDToken(c.Request.Context(), sessionID, req.IDToken)
		if err == nil {
			if err := h.cookies.SetSessionID(c.Writer, c.Request, session.ID); err != nil {
				log.Printf("[AuthHandler] failed to write session cookie: %v", err)
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Signed in as %s", session.Username)})
			return
		}
	}

	status, errorType, message := describeAuthError(err)
	log.Printf("[AuthHandler] id token sign-in failed (%s): %v", errorType, err)
	c.JSON(status, gin.H{"success": false, "message": message, "error_type": errorType})
}

// ensureSession returns the request's session id, starting an anonymous
// session when the visitor has none yet
func (h *AuthHandler) ensureSession(c *gin.Context) (string, error) {
	if id := c.GetString(middleware.ContextSessionID); id != "" {
		return id, nil
	}
	session, err := h.sessionService.Start(c.Request.Context())
	if err != nil {
		return "", err
	}
	if err := h.cookies.SetSessionID(c.Writer, c.Request, session.ID); err != nil {
		return "", fmt.Errorf("failed to write session cookie: %w", err)
	}
	c.Set(middleware.ContextSessionID, session.ID)
	return session.ID, nil
}

func (h *AuthHandler) signedIn(c *gin.Context, session *entity.Session) {
	if err := h.cookies.SetSessionID(c.Writer, c.Request, session.ID); err != nil {
		log.Printf("[AuthHandler] failed to write session cookie: %v", err)
	}
	if err := h.cookies.AddFlash(c.Writer, c.Request, middleware.FlashMessage, fmt.Sprintf("Welcome, %s!", session.Username)); err != nil {
		log.Printf("[AuthHandler] failed to queue welcome message: %v", err)
	}
	log.Printf("[AuthHandler] user ID=%d signed in", session.UserID)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// redirectWithError flashes the user-facing message and sends the browser
// to target. The full error is only logged.
func (h *AuthHandler) redirectWithError(c *gin.Context, target string, err error) {
	_, errorType, message := describeAuthError(err)
	if !errors.Is(err, service.ErrInvalidCredentials) {
		log.Printf("[AuthHandler] %s on %s: %v", errorType, c.Request.URL.Path, err)
	}
	if ferr := h.cookies.AddFlash(c.Writer, c.Request, middleware.FlashError, message); ferr != nil {
		log.Printf("[AuthHandler] failed to queue flash message: %v", ferr)
	}
	c.Redirect(http.StatusSeeOther, target)
}
