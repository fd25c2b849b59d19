package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
)

// ComplaintRepo implements repository.ComplaintRepository
type ComplaintRepo struct {
	db *gorm.DB
}

// NewComplaintRepo creates a complaint repository
func NewComplaintRepo(db *gorm.DB) *ComplaintRepo {
	return &ComplaintRepo{db: db}
}

// Create inserts a complaint
func (r *ComplaintRepo) Create(complaint *entity.Complaint) error {
	return r.db.Create(complaint).Error
}

// GetByID returns a complaint together with its author
func (r *ComplaintRepo) GetByID(id uint) (*entity.Complaint, error) {
	var complaint entity.Complaint
	if err := r.db.Preload("User").First(&complaint, id).Error; err != nil {
		return nil, translateReadError(err)
	}
	return &complaint, nil
}

// GetByPhoto returns the complaint a stored photo belongs to
func (r *ComplaintRepo) GetByPhoto(name string) (*entity.Complaint, error) {
	var complaint entity.Complaint
	if err := r.db.Where("photo = ?", name).First(&complaint).Error; err != nil {
		return nil, translateReadError(err)
	}
	return &complaint, nil
}

// Update saves every column of the complaint
func (r *ComplaintRepo) Update(complaint *entity.Complaint) error {
	return r.db.Omit("User").Save(complaint).Error
}

// ListByUser returns the user's complaints, newest first
func (r *ComplaintRepo) ListByUser(userID uint) ([]entity.Complaint, error) {
	var complaints []entity.Complaint
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&complaints).Error
	return complaints, err
}

// List returns complaints newest first, optionally filtered by status
func (r *ComplaintRepo) List(status entity.ComplaintStatus) ([]entity.Complaint, error) {
	var complaints []entity.Complaint
	q := r.db.Preload("User").Order("created_at DESC, id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&complaints).Error
	return complaints, err
}

// CountByUser counts the user's complaints
func (r *ComplaintRepo) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Complaint{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// CountAll counts every complaint
func (r *ComplaintRepo) CountAll() (int64, error) {
	var count int64
	err := r.db.Model(&entity.Complaint{}).Count(&count).Error
	return count, err
}

// CountByStatus counts complaints in a status
func (r *ComplaintRepo) CountByStatus(status entity.ComplaintStatus) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Complaint{}).Where("status = ?", status).Count(&count).Error
	return count, err
}
