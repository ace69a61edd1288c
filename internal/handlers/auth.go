package handlers

import (
	"errors"
	"net/http"
	"strings"

	"coinfolio/internal/auth"
	"coinfolio/internal/database"

	"github.com/gin-gonic/gin"
)

const minPasswordLen = 6

// Register creates an account from form fields and answers with a token as
// plain text.
func (h *Handler) Register(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")
	if username == "" {
		c.String(http.StatusBadRequest, "Username is required")
		return
	}
	if len(password) < minPasswordLen {
		c.String(http.StatusBadRequest, "Password must be at least 6 characters long")
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.log.Errorf("hash password: %v", err)
		c.String(http.StatusInternalServerError, "Registration failed")
		return
	}
	u, err := h.store.CreateUser(c.Request.Context(), username, hash)
	if errors.Is(err, database.ErrUserExists) {
		c.String(http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		h.log.Errorf("create user failed: %v", err)
		c.String(http.StatusInternalServerError, "Registration failed")
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Username)
	if err != nil {
		h.log.Errorf("issue token: %v", err)
		c.String(http.StatusInternalServerError, "Registration failed")
		return
	}
	h.log.Infof("registered user %s", u.Username)
	c.String(http.StatusOK, token)
}

func (h *Handler) Login(c *gin.Context) {
	username := strings.TrimSpace(c.PostForm("username"))
	password := c.PostForm("password")

	u, err := h.store.GetUserByUsername(c.Request.Context(), username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		h.log.Errorf("get user failed: %v", err)
		c.String(http.StatusInternalServerError, "Login failed")
		return
	}
	if err != nil || auth.CheckPassword(u.PasswordHash, password) != nil {
		h.log.Warnf("failed login for %q", username)
		c.String(http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.tokens.Issue(u.ID, u.Username)
	if err != nil {
		h.log.Errorf("issue token: %v", err)
		c.String(http.StatusInternalServerError, "Login failed")
		return
	}
	c.String(http.StatusOK, token)
}
