package security

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	domuser "example.com/storefront/internal/domain/user"
	authuc "example.com/storefront/internal/usecase/auth"
)

const tokenIssuer = "storefront"

var errInvalidToken = errors.New("invalid token")

// JWTService signs HS256 access tokens. The account id travels in the
// subject claim; role and profile fields are carried for display only.
type JWTService struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

func NewJWTService(secret string, expiration time.Duration) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

type accessClaims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (s *JWTService) GenerateToken(u *domuser.User) (string, error) {
	issued := s.now()
	claims := accessClaims{
		Role:  string(u.RoleCode),
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.expiration)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return signed, errors.Wrap(err, "sign token")
}

func (s *JWTService) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}

func (s *JWTService) ParseToken(raw string) (*authuc.Claims, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errInvalidToken
	}
	role, err := domuser.ParseRoleCode(claims.Role)
	if err != nil {
		return nil, errors.Wrap(err, "token role")
	}

	return &authuc.Claims{
		UserID:   userID,
		RoleCode: role,
		Email:    claims.Email,
		Name:     claims.Name,
	}, nil
}
