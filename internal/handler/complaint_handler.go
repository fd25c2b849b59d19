package handler

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/complaint-tracker/internal/config"
	"github.com/yourusername/complaint-tracker/internal/middleware"
	"github.com/yourusername/complaint-tracker/internal/service"
)

// allowedPhotoExtensions are the image types accepted for complaint photos
var allowedPhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ComplaintHandler serves the citizen side: dashboard, submission and
// viewing one's own complaints
type ComplaintHandler struct {
	complaintService *service.ComplaintService
	cookies          *middleware.SessionCookies
	uploads          config.UploadsConfig
}

func NewComplaintHandler(complaintService *service.ComplaintService, cookies *middleware.SessionCookies, uploads config.UploadsConfig) *ComplaintHandler {
	return &ComplaintHandler{
		complaintService: complaintService,
		cookies:          cookies,
		uploads:          uploads,
	}
}

// SubmitComplaintRequest holds the text fields of the multipart form
type SubmitComplaintRequest struct {
	Category            string `form:"category"`
	Description         string `form:"description"`
	Location            string `form:"location"`
	LocationDescription string `form:"location_description"`
}

// Dashboard lists the signed-in user's complaints
func (h *ComplaintHandler) Dashboard(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthenticated"})
		return
	}

	count, err := h.complaintService.CountForUser(user.ID)
	if err != nil {
		handleComplaintError(c, err)
		return
	}
	complaints, err := h.complaintService.ListForUser(user.ID)
	if err != nil {
		handleComplaintError(c, err)
		return
	}

	flashes := h.cookies.Flashes(c.Writer, c.Request, middleware.FlashError, middleware.FlashMessage)
	c.JSON(http.StatusOK, gin.H{
		"username":        user.Username,
		"picture_url":     user.PictureURL,
		"is_admin":        user.IsAdmin(),
		"complaint_count": count,
		"complaints":      complaints,
		"messages":        flashes[middleware.FlashMessage],
		"errors":          flashes[middleware.FlashError],
	})
}

// Submit handles the multipart complaint form with an optional photo
func (h *ComplaintHandler) Submit(c *gin.Context) {
	userID := c.GetUint(middleware.ContextUserID)

	var req SubmitComplaintRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid complaint form", "error_type": "validation_error"})
		return
	}

	photo, err := h.savePhoto(c)
	if err != nil {
		if errors.Is(err, errInvalidPhoto) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
			return
		}
		log.Printf("[ComplaintHandler] failed to store photo for user ID=%d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo", "error_type": "internal_server_error"})
		return
	}

	complaint, err := h.complaintService.Submit(userID, service.SubmitInput{
		Category:            req.Category,
		Description:         req.Description,
		Location:            req.Location,
		LocationDescription: req.LocationDescription,
		Photo:               photo,
	})
	if err != nil {
		h.removePhoto(photo)
		handleComplaintError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Complaint submitted successfully",
		"complaint": complaint,
	})
}

// GetComplaint shows one of the caller's own complaints
func (h *ComplaintHandler) GetComplaint(c *gin.Context) {
	complaint, err := h.complaintService.GetForUser(c.GetUint(middleware.ContextUserID), c.GetUint("complaintID"))
	if err != nil {
		handleComplaintError(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

// Photo serves a stored complaint photo to its owner or an admin
func (h *ComplaintHandler) Photo(c *gin.Context) {
	name := c.Param("name")
	if name != filepath.Base(name) || !allowedPhotoExtensions[strings.ToLower(filepath.Ext(name))] {
		c.JSON(http.StatusNotFound, gin.H{"error": "Photo not found", "error_type": "not_found"})
		return
	}
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "error_type": "unauthenticated"})
		return
	}
	if _, err := h.complaintService.PhotoForViewer(user, name); err != nil {
		handleComplaintError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=3600")
	c.File(filepath.Join(h.uploads.Dir, name))
}

var errInvalidPhoto = errors.New("invalid photo")

// savePhoto stores the uploaded file under a random name and returns that
// name, or "" when no file was sent
func (h *ComplaintHandler) savePhoto(c *gin.Context) (string, error) {
	file, err := c.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", errInvalidPhoto, err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedPhotoExtensions[ext] {
		return "", fmt.Errorf("%w: only jpg, jpeg, png, gif and webp images are accepted", errInvalidPhoto)
	}
	if h.uploads.MaxSizeBytes > 0 && file.Size > h.uploads.MaxSizeBytes {
		return "", fmt.Errorf("%w: photo must be at most %d bytes", errInvalidPhoto, h.uploads.MaxSizeBytes)
	}

	if err := os.MkdirAll(h.uploads.Dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(h.uploads.Dir, name)); err != nil {
		return "", err
	}
	return name, nil
}

func (h *ComplaintHandler) removePhoto(name string) {
	if name == "" {
		return
	}
	if err := os.Remove(filepath.Join(h.uploads.Dir, name)); err != nil && !os.IsNotExist(err) {
		log.Printf("[ComplaintHandler] failed to remove orphaned photo %s: %v", name, err)
	}
}
