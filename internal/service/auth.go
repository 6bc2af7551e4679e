package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/storefront/internal/domain/models"
	security "github.com/linemk/storefront/internal/jwt-new"
	"github.com/linemk/storefront/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// AuthResult ответ на успешный вход или регистрацию
type AuthResult struct {
	ID      primitive.ObjectID `json:"_id"`
	Name    string             `json:"name"`
	Email   string             `json:"email"`
	IsAdmin bool               `json:"isAdmin"`
	Token   string             `json:"token"`
}

type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
}

type AuthService struct {
	log       *slog.Logger
	userRepo  storage.UserStorage
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, jwtSecret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:       log,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

var _ AuthServiceInterface = (*AuthService)(nil)

// Register создаёт пользователя. Пароль хэшируется через bcrypt (соль добавляется автоматически).
func (a *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	const op = "service.AuthService.Register"
	email = normalizeEmail(email)
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("registering user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("failed to hash password", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to hash password: %w", op, err)
	}

	user, err := a.userRepo.CreateUser(ctx, &models.User{
		Name:     strings.TrimSpace(name),
		Email:    email,
		PassHash: passHash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			logger.Warn("user already exists")
			return nil, newError(ErrValidation, "user already exists")
		}
		logger.Error("failed to create user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create user: %w: %w", op, ErrPersistence, err)
	}

	logger.Info("user registered", slog.String("userID", user.ID.Hex()))
	return a.issue(op, user)
}

// Login проверяет пароль и выдаёт JWT-токен.
func (a *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "service.AuthService.Login"
	email = normalizeEmail(email)
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Warn("user not found")
			return nil, newError(ErrUnauthorized, "invalid email or password")
		}
		logger.Error("failed to get user", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get user: %w: %w", op, ErrPersistence, err)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return nil, newError(ErrUnauthorized, "invalid email or password")
	}

	logger.Info("user logged in successfully", slog.String("userID", user.ID.Hex()))
	return a.issue(op, user)
}

func (a *AuthService) issue(op string, user *models.User) (*AuthResult, error) {
	token, err := security.NewToken(user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		a.log.Error("failed to generate token", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to generate token: %w", op, err)
	}
	return &AuthResult{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		Token:   token,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
