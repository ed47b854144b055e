package user

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo      Store
	jwtSecret string
}

type Claims struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	jwt.RegisteredClaims
}

func NewService(repo Store, secret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: secret,
	}
}

func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*User, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPwd),
	}
	return s.repo.CreateUser(ctx, u)
}

func (s *Service) Signin(ctx context.Context, req *SigninRequest) (*SigninResponse, error) {
	u, err := s.repo.UserByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrBadCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, ErrBadCredential
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:   u.ID,
		Name: u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chatapp",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &SigninResponse{
		AccessToken: ss,
		ID:          u.ID,
		Name:        u.Name,
	}, nil
}

// ValidateToken checks the signature and expiry, returning the caller's
// identity. The core trusts this identity for the lifetime of a
// connection and never re-validates mid-session.
func (s *Service) ValidateToken(tokenString string) (int64, string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return 0, "", err
	}
	if !token.Valid {
		return 0, "", errors.New("invalid token")
	}
	return claims.ID, claims.Name, nil
}

// UserExists reports whether a user ID refers to a real account.
func (s *Service) UserExists(ctx context.Context, id int64) (bool, error) {
	_, err := s.repo.UserByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
