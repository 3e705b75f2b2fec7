package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pdv-service/internal/models"
	"pdv-service/internal/store"
	"pdv-service/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "pdv-service"

var (
	// ErrInvalidCredentials is returned for an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken is returned when a bearer token cannot be trusted.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenClaims represents JWT claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// LoginRequest carries operator credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned after a successful login
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// AuthService issues and validates operator tokens
type AuthService struct {
	store     *store.Store
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(store *store.Store, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    util.GetLogger(),
	}
}

// Login checks credentials and signs a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if models.IsNotFound(err) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Info("Rejected login", zap.String("email", user.Email))
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := TokenClaims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return &LoginResponse{Token: signed, ExpiresAt: expiresAt, User: user}, nil
}

// ValidateToken parses a bearer token and returns its claims
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CreateUser stores a user with a bcrypt password hash
func (s *AuthService) CreateUser(ctx context.Context, name, email, password, role string) (*models.User, error) {
	if strings.TrimSpace(name) == "" {
		return nil, models.NewValidationError("name", "is required")
	}
	if len(password) < 6 {
		return nil, models.NewValidationError("password", "must have at least 6 characters")
	}
	switch role {
	case models.RoleAdmin, models.RoleCashier:
	default:
		return nil, models.NewValidationError("role", "unknown role %q", role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap admin account when it does not exist yet
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	existing, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return existing, nil
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	u, err := s.CreateUser(ctx, "Administrator", email, password, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Bootstrap admin created", zap.String("email", u.Email))
	return u, nil
}
