package repository

import (
	"github.com/ManuelReschke/PayFox/app/models"
)

// UserRepository defines the interface for principal lookup operations. User
// creation only happens through the seeder / external auth service.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
}
