package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/podilnyk/monojar/internal/models/admin"
	"github.com/podilnyk/monojar/internal/models/errs"
)

// RegisterParams defines parameters for Register.
type RegisterParams struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginParams defines parameters for Login.
type LoginParams struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// PermissionParams defines parameters for Grant and Revoke.
type PermissionParams struct {
	Capability admin.Capability `json:"capability"`
	AdminID    int              `json:"admin_id"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Registration (POST /api/v1/auth/register)
	Register(w http.ResponseWriter, r *http.Request, params RegisterParams)
	// Authentication (POST /api/v1/auth/login)
	Login(w http.ResponseWriter, r *http.Request, params LoginParams)
	// Grant capability (POST /api/v1/auth/permissions/grant)
	Grant(w http.ResponseWriter, r *http.Request, params PermissionParams)
	// Revoke capability (POST /api/v1/auth/permissions/revoke)
	Revoke(w http.ResponseWriter, r *http.Request, params PermissionParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

var knownCapabilities = map[admin.Capability]struct{}{
	admin.OrdersWrite:       {},
	admin.AdminsManage:      {},
	admin.PermissionsManage: {},
}

// Register operation middleware.
func (siw *ServerInterfaceWrapper) Register(w http.ResponseWriter, r *http.Request) {
	var params RegisterParams

	if err := decodeCredentials(r, &params.Name, &params.Password); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.Register(w, r, params)
}

// Login operation middleware.
func (siw *ServerInterfaceWrapper) Login(w http.ResponseWriter, r *http.Request) {
	var params LoginParams

	if err := decodeCredentials(r, &params.Name, &params.Password); err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.Login(w, r, params)
}

// Grant operation middleware.
func (siw *ServerInterfaceWrapper) Grant(w http.ResponseWriter, r *http.Request) {
	params, err := decodePermission(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.Grant(w, r, params)
}

// Revoke operation middleware.
func (siw *ServerInterfaceWrapper) Revoke(w http.ResponseWriter, r *http.Request) {
	params, err := decodePermission(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.Revoke(w, r, params)
}

func decodeCredentials(r *http.Request, name, password *string) error {
	var payload struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}

	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}

	if err = json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err)
	}

	// ------------- Required JSON body parameter "name" --------------

	if payload.Name == "" {
		return fmt.Errorf("%w: name", errs.ErrRequiredBodyParam)
	}

	// ------------- Required JSON body parameter "password" ----------

	if payload.Password == "" {
		return fmt.Errorf("%w: password", errs.ErrRequiredBodyParam)
	}

	*name = payload.Name
	*password = payload.Password

	return nil
}

func decodePermission(r *http.Request) (PermissionParams, error) {
	var params PermissionParams

	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return params, err
	}

	if err = json.Unmarshal(data, &params); err != nil {
		return params, fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err)
	}

	if params.AdminID <= 0 {
		return params, fmt.Errorf("%w: admin_id", errs.ErrRequiredBodyParam)
	}

	if _, known := knownCapabilities[params.Capability]; !known {
		return params, fmt.Errorf("%w: unknown capability %q",
			errs.ErrInvalidRequest, params.Capability)
	}

	return params, nil
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	// Middlewares applied to the permission management routes.
	PermissionMiddlewares []MiddlewareFunc
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Post(options.BaseURL+"/auth/register", wrapper.Register)
	r.Post(options.BaseURL+"/auth/login", wrapper.Login)

	r.Group(func(r chi.Router) {
		for _, middleware := range options.PermissionMiddlewares {
			r.Use(middleware)
		}
		r.Post(options.BaseURL+"/auth/permissions/grant", wrapper.Grant)
		r.Post(options.BaseURL+"/auth/permissions/revoke", wrapper.Revoke)
	})

	return r
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrRequiredBodyParam) ||
		errors.Is(err, errs.ErrInvalidRequest) ||
		errors.Is(err, errs.ErrInvalidPayload) ||
		errors.Is(err, io.EOF):
		code = http.StatusBadRequest

	// Status Unauthorized (401).
	case errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrInvalidCredentials):
		code = http.StatusUnauthorized

	// Status Forbidden (403).
	case errors.Is(err, errs.ErrForbidden):
		code = http.StatusForbidden

	// Status Conflict (409).
	case errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
