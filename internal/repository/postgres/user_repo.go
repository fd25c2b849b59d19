package postgres

import (
	"gorm.io/gorm"

	"github.com/yourusername/complaint-tracker/internal/domain/entity"
)

// UserRepo implements repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a user repository
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a user. Uniqueness is left to the database indexes so that
// concurrent registrations cannot both succeed.
func (r *UserRepo) Create(user *entity.User) error {
	return translateWriteError(r.db.Create(user).Error, "user")
}

// GetByID returns a user by id
func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, translateReadError(err)
	}
	return &user, nil
}

// GetByEmail returns a user by email
func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	var user entity.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateReadError(err)
	}
	return &user, nil
}

// GetByUsername returns a user by username
func (r *UserRepo) GetByUsername(username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translateReadError(err)
	}
	return &user, nil
}

// Update saves every column of the user
func (r *UserRepo) Update(user *entity.User) error {
	return translateWriteError(r.db.Save(user).Error, "user")
}

// ExistsByUsername reports whether the username is taken
func (r *UserRepo) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&entity.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// ExistsByEmail reports whether the email is taken
func (r *UserRepo) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&entity.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}
