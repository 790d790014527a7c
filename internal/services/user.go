package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/roomdesk/apiserver/internal/store"
	"github.com/roomdesk/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context) ([]types.User, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Deactivate(ctx context.Context, id int) error
}

// UserInput is the editable part of a user account. An empty Password on
// update keeps the current one.
type UserInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Area     string `json:"area"`
	Password string `json:"password"`
}

func (in *UserInput) normalize() {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Area = strings.TrimSpace(in.Area)
}

func (in UserInput) validate() error {
	if in.Email == "" || in.Name == "" {
		return reject(ReasonInvalidInput, "missing required fields")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return reject(ReasonInvalidInput, "invalid email")
	}
	return nil
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo UserRepository
	cost int
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, cost: bcrypt.DefaultCost}
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates an active account with the user role.
func (s *UserService) Register(ctx context.Context, in UserInput) (types.User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return types.User{}, err
	}
	if in.Password == "" {
		return types.User{}, reject(ReasonInvalidInput, "missing required fields")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		Name:         in.Name,
		Area:         in.Area,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return types.User{}, ErrEmailTaken
	}
	return user, err
}

// Update edits an active, non-admin account. The password is re-hashed only
// when a new one is supplied.
func (s *UserService) Update(ctx context.Context, id int, in UserInput) (types.User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return types.User{}, err
	}

	user := types.User{ID: id, Email: in.Email, Name: in.Name, Area: in.Area}
	if in.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = string(hashed)
	}

	updated, err := s.repo.Update(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		return types.User{}, ErrEmailTaken
	}
	return updated, err
}

// Delete deactivates an active, non-admin account.
func (s *UserService) Delete(ctx context.Context, id int) error {
	return s.repo.Deactivate(ctx, id)
}

// Authenticate returns the active user owning email when password matches.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}
