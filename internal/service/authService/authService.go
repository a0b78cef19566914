package authService

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"share-service/internal/apperrors"
	"share-service/internal/model/userInfo"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const jwtTokenExpireTime = 3 * time.Hour

type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string) (uint32, error)
	GetByID(ctx context.Context, id uint32) (*userInfo.User, error)
	GetByUsername(ctx context.Context, username string) (*userInfo.User, error)
	GetByEmail(ctx context.Context, email string) (*userInfo.User, error)
}

// AuthService is the identity collaborator: it issues credentials and
// resolves them back to actor ids. The core never sees a credential, only
// the resolved actor.
type AuthService struct {
	users        UserStore
	jwtSecretKey string
	log          *zap.Logger
}

func New(users UserStore, jwtSecret string, log *zap.Logger) *AuthService {
	return &AuthService{users: users, jwtSecretKey: jwtSecret, log: log}
}

func (s *AuthService) Register(ctx context.Context, username, email, password string) (uint32, error) {
	if username == "" || email == "" || password == "" {
		return 0, fmt.Errorf("%w: username, email and password are required", apperrors.ErrValidation)
	}
	if !emailRegex.MatchString(email) {
		return 0, fmt.Errorf("%w: invalid email format", apperrors.ErrValidation)
	}

	if existing, err := s.users.GetByEmail(ctx, email); err != nil {
		return 0, fmt.Errorf("failed to check email: %w", err)
	} else if existing != nil {
		return 0, fmt.Errorf("%w: email already exists", apperrors.ErrConflict)
	}
	if existing, err := s.users.GetByUsername(ctx, username); err != nil {
		return 0, fmt.Errorf("failed to check username: %w", err)
	} else if existing != nil {
		return 0, fmt.Errorf("%w: username already taken", apperrors.ErrConflict)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}

	userID, err := s.users.Create(ctx, username, email, string(hashedPassword))
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return userID, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthenticated)
	}
	return s.generateJWT(user)
}

// ResolveActor turns a bearer credential into an actor id. Everything past
// this boundary works with the resolved id, never the credential.
func (s *AuthService) ResolveActor(ctx context.Context, tokenStr string) (uint32, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.jwtSecretKey), nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: invalid token", apperrors.ErrUnauthenticated)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, fmt.Errorf("%w: invalid claims", apperrors.ErrUnauthenticated)
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid subject", apperrors.ErrUnauthenticated)
	}
	return uint32(uid), nil
}

func (s *AuthService) generateJWT(user *userInfo.User) (string, error) {
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(user.ID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(jwtTokenExpireTime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
