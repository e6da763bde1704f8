package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"greencity/internal/auth"
	"greencity/internal/model"
	"greencity/internal/repository"

	"github.com/apex/log"
	"github.com/google/uuid"
)

const (
	minPasswordLength = 8
	defaultUserLimit  = 20
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type UserService struct {
	users           repository.UserStore
	tokens          *auth.TokenService
	allowPrivileged bool
	now             func() time.Time
}

func NewUserService(users repository.UserStore, tokens *auth.TokenService, allowPrivileged bool) *UserService {
	return &UserService{
		users:           users,
		tokens:          tokens,
		allowPrivileged: allowPrivileged,
		now:             time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	fullName := strings.TrimSpace(req.FullName)
	if email == "" || req.Password == "" || fullName == "" {
		return nil, model.Invalid("Email, password, and full name are required")
	}

	role := req.Role
	if role == "" {
		role = model.RoleCitizen
	}
	if !role.Valid() {
		return nil, model.Invalid("Invalid role")
	}
	if role != model.RoleCitizen && !s.allowPrivileged {
		return nil, model.Forbidden("Only citizens may self-register")
	}
	if !emailPattern.MatchString(email) {
		return nil, model.Invalid("Invalid email format")
	}
	if len(req.Password) < minPasswordLength {
		return nil, model.Invalid("Password must be at least 8 characters long")
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		UID:          uuid.NewString(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hashed,
		Role:         role,
		Preferences:  model.DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrConflict) {
			return nil, model.Conflict("Email already exists")
		}
		return nil, err
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"uid": user.UID, "role": user.Role}).Info("user: registered")
	return &model.AuthResponse{Message: "User registered successfully", User: *user, Token: token}, nil
}

func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, model.Invalid("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	// lazily created profiles have no password
	if user.PasswordHash == "" || !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, model.Unauthenticated("Invalid credentials")
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{Message: "Login successful", User: *user, Token: token}, nil
}

func (s *UserService) GetProfile(ctx context.Context, uid string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, uid)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.NotFound("User profile not found")
	}
	return user, err
}

// UpdateProfile applies only the sections present in req.
func (s *UserService) UpdateProfile(ctx context.Context, uid string, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.GetProfile(ctx, uid)
	if err != nil {
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, model.Invalid("Full name cannot be empty")
		}
		user.FullName = name
	}
	if req.Profile != nil {
		user.Profile = *req.Profile
	}
	if req.Preferences != nil {
		user.Preferences = *req.Preferences
	}
	user.UpdatedAt = s.now()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateRole(ctx context.Context, req *model.UpdateRoleRequest) error {
	if req.TargetUserID == "" || req.NewRole == "" {
		return model.Invalid("Target user ID and new role are required")
	}
	if !req.NewRole.Valid() {
		return model.Invalid("Invalid role")
	}

	err := s.users.UpdateRole(ctx, req.TargetUserID, req.NewRole)
	if errors.Is(err, model.ErrNotFound) {
		return model.NotFound("User profile not found")
	}
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"uid": req.TargetUserID, "role": req.NewRole}).Info("user: role updated")
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, filter model.UserFilter) (*model.UserListResponse, error) {
	if filter.Page < 1 {
		filter.Page = defaultPage
	}
	if filter.Limit < 1 {
		filter.Limit = defaultUserLimit
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, model.Invalid("Invalid role")
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return &model.UserListResponse{
		Users:      users,
		Pagination: model.NewPagination(filter.Page, filter.Limit, total),
	}, nil
}

// DeleteUser removes targetID. Callers may delete themselves; deleting
// anyone else takes the authority role.
func (s *UserService) DeleteUser(ctx context.Context, callerID, targetID string) error {
	if targetID != callerID {
		caller, err := s.users.FindByID(ctx, callerID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return err
		}
		if err := auth.Authorize(caller, auth.AuthorityOnly); err != nil {
			return err
		}
	}

	err := s.users.Delete(ctx, targetID)
	if errors.Is(err, model.ErrNotFound) {
		return model.NotFound("User profile not found")
	}
	return err
}
