package services

import (
	"context"
	"errors"
	"order_engine/internal/auth"
	"order_engine/internal/models"
	"order_engine/internal/repository"
	"strings"

	"go.uber.org/zap"
)

type UserService interface {
	// CreateUser stores a tenant user with a bcrypt hash of password.
	CreateUser(ctx context.Context, tenantID, username, password string, role models.UserRole) (*models.User, error)
	// Login checks credentials and returns a signed bearer token.
	Login(ctx context.Context, tenantID, username, password string) (string, *models.User, error)
}

type userService struct {
	store  repository.Store
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

func NewUserService(store repository.Store, tokens *auth.TokenIssuer, logger *zap.Logger) UserService {
	return &userService{store: store, tokens: tokens, logger: logger}
}

func (s *userService) CreateUser(ctx context.Context, tenantID, username, password string, role models.UserRole) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationError(ReasonInvalidInput, "Username and password are required")
	}
	if !role.IsStaff() {
		return nil, validationError(ReasonInvalidInput, "Invalid role %q", role)
	}
	r := s.store.Repositories()
	if err := requireTenant(ctx, r, tenantID); err != nil {
		return nil, err
	}

	user := &models.User{TenantID: tenantID, Username: username, Role: role}
	if err := user.SetPassword(password); err != nil {
		return nil, internalError("failed to hash password", err)
	}
	if err := r.Users.Create(ctx, user); err != nil {
		return nil, internalError("failed to create user", err)
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, tenantID, username, password string) (string, *models.User, error) {
	r := s.store.Repositories()
	tenant, err := r.Tenants.GetByID(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, notFoundError(ReasonTenantNotFound, "Tenant not found")
	}
	if err != nil {
		return "", nil, internalError("failed to look up tenant", err)
	}
	if tenant.Blocked {
		return "", nil, forbiddenError(ReasonTenantBlocked, "This account is suspended")
	}

	user, err := r.Users.GetByUsername(ctx, tenantID, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", nil, internalError("failed to look up user", err)
	}
	if user == nil || !user.CheckPassword(password) {
		s.logger.Info("login failed", zap.String("tenant_id", tenantID), zap.String("username", username))
		return "", nil, unauthorizedError(ReasonInvalidCredentials, "Invalid credentials")
	}

	token, err := s.tokens.Sign(*user)
	if err != nil {
		return "", nil, internalError("failed to issue token", err)
	}
	s.logger.Info("login succeeded",
		zap.String("tenant_id", tenantID),
		zap.String("username", username),
		zap.String("role", string(user.Role)))
	return token, user, nil
}
