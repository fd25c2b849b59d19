package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
	"github.com/yourusername/complaint-tracker/internal/domain/repository"
	apperrors "github.com/yourusername/complaint-tracker/internal/pkg/errors"
)

const (
	maxDescriptionLength = 2000
	maxLocationLength    = 255
	maxLocationDescLen   = 500
	notifyTimeout        = 15 * time.Second
)

// ComplaintService handles citizen complaints and the admin workflow
type ComplaintService struct {
	complaintRepo repository.ComplaintRepository
	userRepo      repository.UserRepository
	notifier      Notifier
	policy        *bluemonday.Policy
}

// SubmitInput holds a new complaint. Photo is the stored file name, if any.
type SubmitInput struct {
	Category            string
	Description         string
	Location            string
	LocationDescription string
	Photo               string
}

// Stats are the public counters shown next to the registration form
type Stats struct {
	Total             int64   `json:"total_complaints"`
	Solved            int64   `json:"solved_complaints"`
	Pending           int64   `json:"pending_complaints"`
	ResolutionPercent float64 `json:"resolution_percent"`
}

func NewComplaintService(complaintRepo repository.ComplaintRepository, userRepo repository.UserRepository, notifier Notifier) (*ComplaintService, error) {
	if complaintRepo == nil {
		return nil, fmt.Errorf("ComplaintRepository is required for ComplaintService")
	}
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for ComplaintService")
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &ComplaintService{
		complaintRepo: complaintRepo,
		userRepo:      userRepo,
		notifier:      notifier,
		policy:        bluemonday.StrictPolicy(),
	}, nil
}

// Submit stores a complaint in SUBMITTED state. Free text is stripped of markup.
func (s *ComplaintService) Submit(userID uint, input SubmitInput) (*entity.Complaint, error) {
	category, err := entity.ParseComplaintCategory(input.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	description := s.clean(input.Description)
	location := s.clean(input.Location)
	locationDesc := s.clean(input.LocationDescription)

	switch {
	case description == "":
		return nil, fmt.Errorf("%w: description is required", apperrors.ErrValidation)
	case location == "":
		return nil, fmt.Errorf("%w: location is required", apperrors.ErrValidation)
	case utf8.RuneCountInString(description) > maxDescriptionLength:
		return nil, fmt.Errorf("%w: description must be at most %d characters", apperrors.ErrValidation, maxDescriptionLength)
	case utf8.RuneCountInString(location) > maxLocationLength:
		return nil, fmt.Errorf("%w: location must be at most %d characters", apperrors.ErrValidation, maxLocationLength)
	case utf8.RuneCountInString(locationDesc) > maxLocationDescLen:
		return nil, fmt.Errorf("%w: location description must be at most %d characters", apperrors.ErrValidation, maxLocationDescLen)
	}

	complaint := &entity.Complaint{
		UserID:              userID,
		Category:            category,
		Description:         description,
		Location:            location,
		LocationDescription: locationDesc,
		Photo:               input.Photo,
		Status:              entity.StatusSubmitted,
	}
	if err := s.complaintRepo.Create(complaint); err != nil {
		return nil, fmt.Errorf("failed to create complaint: %w", err)
	}
	log.Printf("[ComplaintService] complaint ID=%d submitted by user ID=%d", complaint.ID, userID)
	return complaint, nil
}

// GetForUser returns the complaint only if userID owns it; other users'
// complaints look like missing ones.
func (s *ComplaintService) GetForUser(userID, complaintID uint) (*entity.Complaint, error) {
	complaint, err := s.complaintRepo.GetByID(complaintID)
	if err != nil {
		return nil, err
	}
	if complaint.UserID != userID {
		return nil, apperrors.ErrNotFound
	}
	return complaint, nil
}

// PhotoForViewer returns the complaint a stored photo belongs to when the
// viewer owns it or is an admin. Anything else looks like a missing file.
func (s *ComplaintService) PhotoForViewer(viewer *entity.User, name string) (*entity.Complaint, error) {
	if viewer == nil || name == "" {
		return nil, apperrors.ErrNotFound
	}
	complaint, err := s.complaintRepo.GetByPhoto(name)
	if err != nil {
		return nil, err
	}
	if complaint.UserID != viewer.ID && !viewer.IsAdmin() {
		return nil, apperrors.ErrNotFound
	}
	return complaint, nil
}

func (s *ComplaintService) ListForUser(userID uint) ([]entity.Complaint, error) {
	return s.complaintRepo.ListByUser(userID)
}

func (s *ComplaintService) CountForUser(userID uint) (int64, error) {
	return s.complaintRepo.CountByUser(userID)
}

// Stats counts every complaint; anything not COMPLETED is pending
func (s *ComplaintService) Stats() (*Stats, error) {
	total, err := s.complaintRepo.CountAll()
	if err != nil {
		return nil, fmt.Errorf("failed to count complaints: %w", err)
	}
	solved, err := s.complaintRepo.CountByStatus(entity.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to count solved complaints: %w", err)
	}
	stats := &Stats{Total: total, Solved: solved, Pending: total - solved}
	if total > 0 {
		stats.ResolutionPercent = float64(solved) * 100 / float64(total)
	}
	return stats, nil
}

// List returns all complaints, optionally filtered by status ("" for all)
func (s *ComplaintService) List(status string) ([]entity.Complaint, error) {
	var filter entity.ComplaintStatus
	if strings.TrimSpace(status) != "" {
		parsed, err := entity.ParseComplaintStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		filter = parsed
	}
	return s.complaintRepo.List(filter)
}

func (s *ComplaintService) Get(complaintID uint) (*entity.Complaint, error) {
	return s.complaintRepo.GetByID(complaintID)
}

// AssignVendor records the vendor and moves a SUBMITTED complaint to IN_PROGRESS
func (s *ComplaintService) AssignVendor(ctx context.Context, complaintID, vendorID uint) (*entity.Complaint, error) {
	if vendorID == 0 {
		return nil, fmt.Errorf("%w: vendor id is required", apperrors.ErrValidation)
	}
	complaint, err := s.complaintRepo.GetByID(complaintID)
	if err != nil {
		return nil, err
	}
	if isFinal(complaint.Status) {
		return nil, fmt.Errorf("%w: complaint is already %s", apperrors.ErrConflict, complaint.Status)
	}

	previous := complaint.Status
	complaint.AssignedVendorID = &vendorID
	if complaint.Status == entity.StatusSubmitted {
		complaint.Status = entity.StatusInProgress
	}
	if err := s.complaintRepo.Update(complaint); err != nil {
		return nil, fmt.Errorf("failed to assign vendor: %w", err)
	}
	log.Printf("[ComplaintService] complaint ID=%d assigned to vendor ID=%d", complaint.ID, vendorID)

	if previous != complaint.Status {
		s.notify(ctx, complaint)
	}
	return complaint, nil
}

// UpdateStatus moves the complaint to status. Non-empty notes replace the
// stored admin notes. A complaint never goes back to SUBMITTED, and
// COMPLETED and REJECTED are final.
func (s *ComplaintService) UpdateStatus(ctx context.Context, complaintID uint, status, notes string) (*entity.Complaint, error) {
	next, err := entity.ParseComplaintStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if next == entity.StatusSubmitted {
		return nil, fmt.Errorf("%w: a complaint cannot be moved back to %s", apperrors.ErrValidation, entity.StatusSubmitted)
	}

	complaint, err := s.complaintRepo.GetByID(complaintID)
	if err != nil {
		return nil, err
	}
	if isFinal(complaint.Status) && complaint.Status != next {
		return nil, fmt.Errorf("%w: complaint is already %s", apperrors.ErrConflict, complaint.Status)
	}

	changed := complaint.Status != next
	complaint.Status = next
	if cleaned := s.clean(notes); cleaned != "" {
		complaint.AdminNotes = cleaned
	}
	if err := s.complaintRepo.Update(complaint); err != nil {
		return nil, fmt.Errorf("failed to update complaint status: %w", err)
	}
	log.Printf("[ComplaintService] complaint ID=%d status=%s", complaint.ID, complaint.Status)

	if changed {
		s.notify(ctx, complaint)
	}
	return complaint, nil
}

// notify never fails the admin action: the status change is already stored
func (s *ComplaintService) notify(ctx context.Context, complaint *entity.Complaint) {
	email := ""
	if complaint.User != nil {
		email = complaint.User.Email
	} else {
		owner, err := s.userRepo.GetByID(complaint.UserID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				log.Printf("[ComplaintService] failed to load owner of complaint ID=%d: %v", complaint.ID, err)
			}
			return
		}
		email = owner.Email
	}
	if email == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifyStatusChange(ctx, email, complaint); err != nil {
		log.Printf("[ComplaintService] failed to notify owner of complaint ID=%d: %v", complaint.ID, err)
	}
}

// clean strips markup and stores plain text. Sanitize entity-encodes what it
// keeps, so the result is decoded; escaping happens where HTML is built.
func (s *ComplaintService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

func isFinal(status entity.ComplaintStatus) bool {
	return status == entity.StatusCompleted || status == entity.StatusRejected
}
