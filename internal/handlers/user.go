package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/arena/internal/auth"
	"github.com/jason-s-yu/arena/internal/database"
	"github.com/jason-s-yu/arena/internal/models"
	"github.com/sirupsen/logrus"
)

// UserStore is the account persistence the user endpoints need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	CreateToken(userID uuid.UUID) (string, error)
}

// UserHandlers serves account creation and login.
type UserHandlers struct {
	users    UserStore
	tokens   TokenIssuer
	tokenTTL time.Duration
	logger   logrus.FieldLogger
}

func NewUserHandlers(users UserStore, tokens TokenIssuer, tokenTTL time.Duration, logger logrus.FieldLogger) *UserHandlers {
	return &UserHandlers{users: users, tokens: tokens, tokenTTL: tokenTTL, logger: logger}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Create registers an account. Responds 201 with the user, 409 if the email is taken.
func (h *UserHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Password == "" || req.Username == "" {
		http.Error(w, "email, password and username are required", http.StatusBadRequest)
		return
	}

	user := models.User{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	}
	if err := h.users.CreateUser(r.Context(), &user); err != nil {
		if errors.Is(err, database.ErrEmailTaken) {
			http.Error(w, "email already exists", http.StatusConflict)
			return
		}
		h.logger.WithError(err).Error("failed to create user")
		http.Error(w, "error creating user", http.StatusInternalServerError)
		return
	}
	user.Password = ""
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles user login requests. It expects a JSON payload with email and password,
// and returns a JSON response with an authentication token if the login is successful.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password"
//	}
//
// Response payload:
//
//	{
//	  "token": "{jwt}"
//	}
//
// The token is also set as the auth_token cookie, which the matchmaking socket reads.
func (h *UserHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			h.logger.WithError(err).Error("user lookup failed")
		}
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}
	ok, err := auth.CheckPassword(req.Password, user.Password)
	if err != nil || !ok {
		http.Error(w, "authentication failed", http.StatusForbidden)
		return
	}

	token, err := h.tokens.CreateToken(user.ID)
	if err != nil {
		h.logger.WithError(err).Error("failed to sign token")
		http.Error(w, "failed to create token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   int(h.tokenTTL.Seconds()),
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token})
}
