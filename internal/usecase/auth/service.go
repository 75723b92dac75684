package auth

import (
	"context"
	"errors"
	"strings"

	domuser "example.com/storefront/internal/domain/user"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error
}

type Claims struct {
	UserID   int64
	RoleCode domuser.RoleCode
	Email    string
	Name     string
}

type TokenService interface {
	GenerateToken(u *domuser.User) (string, error)
	ParseToken(token string) (*Claims, error)
}

type Service struct {
	userRepo domuser.Repository
	hasher   PasswordHasher
	tokens   TokenService
}

func NewService(
	userRepo domuser.Repository,
	hasher PasswordHasher,
	tokens TokenService,
) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token string
	User  *domuser.User
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, domuser.ErrInvalidCredential
	}

	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domuser.ErrUserNotFound) {
			return nil, domuser.ErrUnauthorized
		}
		return nil, err
	}

	if err := s.hasher.Compare(u.PasswordHash, in.Password); err != nil {
		return nil, domuser.ErrUnauthorized
	}

	token, err := s.tokens.GenerateToken(u)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		Token: token,
		User:  u,
	}, nil
}

type CreateUserInput struct {
	Name     string
	Email    string
	Phone    string
	Password string
	RoleCode domuser.RoleCode
}

// CreateUser registers an account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*domuser.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || len(in.Password) < 6 {
		return nil, domuser.ErrInvalidCredential
	}

	role := in.RoleCode
	if role == "" {
		role = domuser.RoleCodeCustomer
	}
	if !role.IsValid() {
		return nil, domuser.ErrInvalidRoleCode
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	return s.userRepo.Create(ctx, &domuser.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: hash,
		RoleCode:     role,
	})
}
