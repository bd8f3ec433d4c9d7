package models

import (
	"strings"

	"github.com/tometh04/vibook-services-sub001/internal/domain/integration"
)

// UserStatusActive is the status of users that can be assigned leads
const UserStatusActive = "active"

// UserModel is the read model of the users table. Board sync only reads the
// columns needed to match collaborators; the table is owned elsewhere.
type UserModel struct {
	TenantModel
	Username    string `gorm:"type:varchar(100);not null"`
	Email       string `gorm:"type:varchar(200)"`
	DisplayName string `gorm:"type:varchar(200)"`
	Status      string `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToCandidate converts the row to a member resolution candidate.
// DisplayName is preferred; Username is the fallback.
func (m *UserModel) ToCandidate() integration.CandidateUser {
	name := strings.TrimSpace(m.DisplayName)
	if name == "" {
		name = strings.TrimSpace(m.Username)
	}
	return integration.CandidateUser{ID: m.ID, Name: name}
}
