// internal/handlers/user.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jason-s-yu/bingo/internal/auth"
	"github.com/jason-s-yu/bingo/internal/database"
	"github.com/jason-s-yu/bingo/internal/models"
	"github.com/sirupsen/logrus"
)

// UserStore is the part of the database the account endpoints need.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	AuthenticateUser(ctx context.Context, email, password string) (*models.User, error)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// CreateUserHandler registers an account.
//
// Request payload:
//
//	{
//	  "email": "someone@example.com",
//	  "password": "password",
//	  "username": "someone"
//	}
//
// Responds 201 with the user (without the password), 409 if the email is taken.
func CreateUserHandler(logger *logrus.Logger, store UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if !strings.Contains(req.Email, "@") || len(req.Password) < 8 || req.Username == "" {
			http.Error(w, "email, username and a password of at least 8 characters are required", http.StatusBadRequest)
			return
		}

		user := models.User{
			Email:    req.Email,
			Password: req.Password,
			Username: req.Username,
		}
		if err := store.CreateUser(r.Context(), &user); err != nil {
			if errors.Is(err, database.ErrEmailTaken) {
				http.Error(w, "email already exists", http.StatusConflict)
				return
			}
			logger.Errorf("failed to create user %s: %v", req.Email, err)
			http.Error(w, "error creating user", http.StatusInternalServerError)
			return
		}
		user.Password = ""
		writeJSON(w, http.StatusCreated, user)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// LoginHandler checks credentials and returns a session token, also set as the
// auth_token cookie.
func LoginHandler(logger *logrus.Logger, store UserStore, issuer *auth.Issuer, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}

		user, err := store.AuthenticateUser(r.Context(), req.Email, req.Password)
		if err != nil {
			if !errors.Is(err, database.ErrInvalidCredentials) {
				logger.Errorf("failed to authenticate user: %v", err)
			}
			http.Error(w, "authentication failed", http.StatusForbidden)
			return
		}

		id := auth.Identity{UserID: user.ID.String(), Username: user.Username}
		issueToken(w, logger, issuer, ttl, id)
	}
}

// GuestHandler issues a token for a new guest identity. Guests can play but their
// games are never scored.
func GuestHandler(logger *logrus.Logger, issuer *auth.Issuer, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		issueToken(w, logger, issuer, ttl, auth.NewGuest())
	}
}

func issueToken(w http.ResponseWriter, logger *logrus.Logger, issuer *auth.Issuer, ttl time.Duration, id auth.Identity) {
	token, err := issuer.CreateJWT(id)
	if err != nil {
		logger.Errorf("failed to sign token for %s: %v", id.UserID, err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, token, int(ttl.Seconds()))
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, UserID: id.UserID, Username: id.Username})
}
