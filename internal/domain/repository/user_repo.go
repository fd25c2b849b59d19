package repository

import (
	"github.com/yourusername/complaint-tracker/internal/domain/entity"
)

// UserRepository is the credential store. Create and Update must fail with
// an error wrapping apperrors.ErrConflict when a unique column (username,
// email, google_id) would be duplicated, leaving the store unchanged.
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	Update(user *entity.User) error
	ExistsByUsername(username string) (bool, error)
	ExistsByEmail(email string) (bool, error)
}
