package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nwells/parley/internal/auth"
)

// credentialsRequest is the body for both register and login.
type credentialsRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  authUser `json:"user"`
}

type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// AuthHandler serves the credential-issuance endpoints. These sit outside the
// coordination core: the websocket layer only ever sees the issued token.
type AuthHandler struct {
	accounts *auth.Store
	tokens   *auth.TokenManager
	validate *validator.Validate
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(accounts *auth.Store, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// Register creates an account and returns a signed token (POST /api/register).
func (h *AuthHandler) Register(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "username & password required"})
	}

	identity, err := h.accounts.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "username taken"})
		}
		slog.Error("Registration failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "registration failed"})
	}

	return h.issue(c, identity)
}

// Login checks credentials and returns a signed token (POST /api/login).
func (h *AuthHandler) Login(c echo.Context) error {
	req, err := h.bind(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "username & password required"})
	}

	identity, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid credentials"})
	}

	return h.issue(c, identity)
}

func (h *AuthHandler) bind(c echo.Context) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	if err := h.validate.Struct(req); err != nil {
		return req, err
	}
	return req, nil
}

func (h *AuthHandler) issue(c echo.Context, identity auth.Identity) error {
	token, err := h.tokens.Issue(identity)
	if err != nil {
		slog.Error("Token issue failed", "error", err, "user_id", identity.UserID)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "token issue failed"})
	}
	return c.JSON(http.StatusOK, authResponse{
		Token: token,
		User:  authUser{ID: identity.UserID, Username: identity.Username},
	})
}
