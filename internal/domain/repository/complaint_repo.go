package repository

import (
	"github.com/yourusername/complaint-tracker/internal/domain/entity"
)

// ComplaintRepository stores citizen complaints
type ComplaintRepository interface {
	Create(complaint *entity.Complaint) error
	GetByID(id uint) (*entity.Complaint, error)
	Update(complaint *entity.Complaint) error
	// GetByPhoto finds the complaint that references a stored photo file
	GetByPhoto(name string) (*entity.Complaint, error)
	// ListByUser returns the user's complaints, newest first
	ListByUser(userID uint) ([]entity.Complaint, error)
	// List returns all complaints newest first; an empty status means any
	List(status entity.ComplaintStatus) ([]entity.Complaint, error)
	CountByUser(userID uint) (int64, error)
	CountAll() (int64, error)
	CountByStatus(status entity.ComplaintStatus) (int64, error)
}
