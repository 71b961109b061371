package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/indicator_monitor/utils"
	"gorm.io/gorm"
)

// User is the identity record the fan-out resolves recipients from.
// Role and EmailNotifications are maintained by the identity service.
type User struct {
	ID                 int       `gorm:"primary_key" json:"id"`
	Username           string    `gorm:"size:100;not null;unique" json:"username"`
	Name               string    `gorm:"size:100;not null" json:"name"`
	Email              *string   `gorm:"size:100;unique" json:"email"`
	IsActive           *bool     `gorm:"not null" json:"is_active"`
	Role               UserRole  `gorm:"size:1;not null;index" json:"role"`
	EmailNotifications *bool     `gorm:"not null" json:"email_notifications"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) WantsEmail() bool {
	return utils.DereferencePtr(u.EmailNotifications) && utils.DereferencePtr(u.Email) != ""
}

func ListAdministrators(ctx context.Context, db *gorm.DB) ([]User, error) {
	var results []User
	err := db.WithContext(ctx).
		Where("role = ? AND is_active = ?", UserRoleAdmin, true).
		Order("id ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
