package model

import (
	"time"
)

type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleExpert    Role = "expert"
	RoleAuthority Role = "authority"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleExpert, RoleAuthority:
		return true
	}
	return false
}

type UserProfileDetails struct {
	Bio          string  `json:"bio"`
	Location     string  `json:"location"`
	Phone        string  `json:"phone"`
	Organization *string `json:"organization"`
}

type Preferences struct {
	EmailNotifications bool   `json:"emailNotifications"`
	PushNotifications  bool   `json:"pushNotifications"`
	Language           string `json:"language"`
}

func DefaultPreferences() Preferences {
	return Preferences{EmailNotifications: true, PushNotifications: true, Language: "en"}
}

type User struct {
	UID          string             `json:"uid"`
	Email        string             `json:"email"`
	FullName     string             `json:"fullName"`
	PasswordHash string             `json:"-"`
	Role         Role               `json:"role"`
	ReportsCount int                `json:"reportsCount"`
	VotesCount   int                `json:"votesCount"`
	Profile      UserProfileDetails `json:"profile"`
	Preferences  Preferences        `json:"preferences"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Identity is what a verified bearer token tells us about the caller.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Request/Response
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

type UpdateProfileRequest struct {
	FullName    *string             `json:"fullName"`
	Profile     *UserProfileDetails `json:"profile"`
	Preferences *Preferences        `json:"preferences"`
}

type UpdateRoleRequest struct {
	TargetUserID string `json:"targetUserId"`
	NewRole      Role   `json:"newRole"`
}

type UserFilter struct {
	Role   Role
	Search string
	Page   int
	Limit  int
}

type UserListResponse struct {
	Users      []User     `json:"users"`
	Pagination Pagination `json:"pagination"`
}
