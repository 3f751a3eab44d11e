package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/podilnyk/monojar/internal/config"
	"github.com/podilnyk/monojar/internal/jwt"
	"github.com/podilnyk/monojar/internal/models/admin"
	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

// TxManager runs a function inside a database transaction.
// Satisfied by the go-transaction-manager Manager.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Gate answers whether a principal holds a capability.
type Gate interface {
	Check(ctx context.Context, adminID int, c admin.Capability) error
}

type Service struct {
	repo   Repository
	trm    TxManager
	logger logger.Logger
	config *config.Config
}

func NewService(repo Repository, trm TxManager, logger logger.Logger, config *config.Config) (*Service, error) {
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	if trm == nil {
		return nil, errors.New("nil dependency: transaction manager")
	}
	return &Service{repo: repo, trm: trm, logger: logger, config: config}, nil
}

var (
	_ ServerInterface = (*Service)(nil)
	_ Gate            = (*Service)(nil)
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Registration (POST /api/v1/auth/register).
func (s *Service) Register(w http.ResponseWriter, r *http.Request, params RegisterParams) {
	// Create password hash.
	hashPassword, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.config.PasswordHashCost)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	var id int

	// A fresh admin starts with the order capability; the rest is
	// granted explicitly by a permission manager.
	err = s.trm.Do(r.Context(), func(ctx context.Context) error {
		id, err = s.repo.CreateAdmin(ctx, params.Name, string(hashPassword))
		if err != nil {
			return err
		}
		return s.repo.GrantCapability(ctx, id, admin.OrdersWrite)
	})
	if err != nil {
		if errors.Is(err, errs.ErrDataConflict) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: name %q already exists", err, params.Name))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("create admin: %w", err))
		return
	}

	s.logger.With(r.Context(), "admin", id).Info("admin registered")

	s.writeToken(w, r, id, params.Name)
}

// Authentication (POST /api/v1/auth/login).
func (s *Service) Login(w http.ResponseWriter, r *http.Request, params LoginParams) {
	a, err := s.repo.GetAdminByName(r.Context(), params.Name)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: admin %q not found",
				errs.ErrInvalidCredentials, params.Name))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("get admin %q: %w", params.Name, err))
		return
	}

	// Compare stored and provided passwords.
	err = bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(params.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: password", errs.ErrInvalidCredentials))
			return
		}
		ErrorHandlerFunc(w, r, fmt.Errorf("compare passwords: %w", err))
		return
	}

	s.writeToken(w, r, a.ID, a.Name)
}

// Grant capability (POST /api/v1/auth/permissions/grant).
func (s *Service) Grant(w http.ResponseWriter, r *http.Request, params PermissionParams) {
	if _, err := s.repo.GetAdminByID(r.Context(), params.AdminID); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("admin %d: %w", params.AdminID, err))
		return
	}

	if err := s.repo.GrantCapability(r.Context(), params.AdminID, params.Capability); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("grant capability: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Revoke capability (POST /api/v1/auth/permissions/revoke).
func (s *Service) Revoke(w http.ResponseWriter, r *http.Request, params PermissionParams) {
	if err := s.repo.RevokeCapability(r.Context(), params.AdminID, params.Capability); err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("revoke capability: %w", err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Check implements the capability gate.
func (s *Service) Check(ctx context.Context, adminID int, c admin.Capability) error {
	has, err := s.repo.HasCapability(ctx, adminID, c)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: capability %q", errs.ErrForbidden, c)
	}
	return nil
}

// Middleware resolves the bearer token to an admin and stores it in the
// request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if token == "" {
			if authCookie, err := r.Cookie("Authorization"); err == nil {
				token = authCookie.Value
			}
		}
		if token == "" {
			ErrorHandlerFunc(w, r, fmt.Errorf("authorization token: %w", errs.ErrNotFound))
			return
		}

		adminID, err := jwt.GetAdminID(token, s.config.JWT.SigningKey)
		if err != nil {
			ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidCredentials, err))
			return
		}

		a, err := s.repo.GetAdminByID(r.Context(), adminID)
		if err != nil {
			ErrorHandlerFunc(w, r, fmt.Errorf("get admin %d: %w", adminID, err))
			return
		}

		r = r.WithContext(admin.NewContext(r.Context(), a))

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}

// RequireCapability gates a route on the admin in context holding the
// capability. Must be mounted after Middleware.
func (s *Service) RequireCapability(c admin.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		f := func(w http.ResponseWriter, r *http.Request) {
			a, found := admin.FromContext(r.Context())
			if !found {
				ErrorHandlerFunc(w, r, fmt.Errorf("admin: %w", errs.ErrNotFound))
				return
			}

			if err := s.Check(r.Context(), a.ID, c); err != nil {
				ErrorHandlerFunc(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(f)
	}
}

func (s *Service) writeToken(w http.ResponseWriter, r *http.Request, id int, name string) {
	authToken, err := jwt.BuildString(id, name, s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		ErrorHandlerFunc(w, r, fmt.Errorf("build token: %w", err))
		return
	}

	// Set the "Authorization" cookie with the JWT authentication token.
	http.SetCookie(w, &http.Cookie{
		Name:     "Authorization",
		Value:    authToken,
		Expires:  time.Now().Add(s.config.JWT.Expiration),
		HttpOnly: true,
	})

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(tokenResponse{
		AccessToken: authToken,
		TokenType:   "Bearer",
	}); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}
