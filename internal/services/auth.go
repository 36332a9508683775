package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/maturio/maturio-backend/internal/pkg/logger"
	"github.com/maturio/maturio-backend/internal/platform/apierr"
	"github.com/maturio/maturio-backend/internal/repos"
	"github.com/maturio/maturio-backend/internal/requestdata"
	"github.com/maturio/maturio-backend/internal/types"
)

type JWTClaims struct {
	jwt.RegisteredClaims
	Plan       string `json:"plan"`
	Sequential bool   `json:"sequential,omitempty"`
}

type AuthService interface {
	RegisterUser(ctx context.Context, user *types.User) (string, error)
	LoginUser(ctx context.Context, email, password string) (*types.User, string, error)
	// SetContextFromToken attaches the caller's identity and plan to ctx.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	CurrentUser(ctx context.Context) (*types.User, error)
	GetAccessTTL() time.Duration
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = 24 * time.Hour
	}
	return &authService{
		db:           db,
		log:          baseLog.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) (string, error) {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" || !strings.Contains(user.Email, "@") {
		return "", apierr.New(http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("a valid email is required"))
	}
	if len(user.Password) < 8 {
		return "", apierr.New(http.StatusBadRequest, apierr.CodeInvalidInput, fmt.Errorf("password must be at least 8 characters"))
	}
	exists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
	if err != nil {
		return "", fmt.Errorf("check email availability: %w", err)
	}
	if exists {
		return "", apierr.New(http.StatusConflict, apierr.CodeInvalidInput, fmt.Errorf("email is already registered"))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	user.Password = string(hash)
	user.ID = uuid.New()
	if user.Plan == "" {
		user.Plan = types.PlanFree
	}
	if _, err := as.userRepo.Create(ctx, nil, user); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return as.generateAccessToken(user)
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (*types.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := as.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, "", fmt.Errorf("fetch user by email: %w", err)
	}
	if user == nil {
		return nil, "", apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("invalid email or password"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("invalid email or password"))
	}
	token, err := as.generateAccessToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Plan:       user.Plan,
		Sequential: user.Sequential,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("missing bearer token"))
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("parse token: %w", err))
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("invalid or expired token"))
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("invalid user id in token: %w", err))
	}
	rd := &requestdata.RequestData{
		UserID:     userID,
		Plan:       claims.Plan,
		Sequential: claims.Sequential,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

// CurrentUser loads the authenticated user row. Plan changes take effect here
// rather than at token refresh, so quota decisions always see the live plan.
func (as *authService) CurrentUser(ctx context.Context) (*types.User, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, nil)
	}
	user, err := as.userRepo.GetByID(ctx, nil, rd.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.New(http.StatusUnauthorized, apierr.CodeUnauthorized, fmt.Errorf("user no longer exists"))
	}
	return user, nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}
