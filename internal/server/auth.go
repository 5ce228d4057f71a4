package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/services"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/gin-gonic/gin"
)

var availableActions = []string{"register", "login", "setVIP", "me"}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type vipRequest struct {
	Username string `json:"username"`
	IsVIP    bool   `json:"isVIP"`
}

// AuthHandler serves /api/auth, dispatching on the action query parameter.
type AuthHandler struct {
	auth       *services.AuthService
	adminToken string
	logger     *log.Logger
}

func (h *AuthHandler) Routes() []string {
	return []string{"/api/auth"}
}

func (h *AuthHandler) Register(r gin.IRouter) {
	r.GET("/api/auth", h.Dispatch)
	r.POST("/api/auth", h.Dispatch)
}

// Dispatch routes ?action= to its handler.
func (h *AuthHandler) Dispatch(c *gin.Context) {
	if h.auth == nil {
		abortWithError(c, fmt.Errorf("%w: accounts are disabled", shared.ErrServiceUnavailable))
		return
	}

	action := c.Query("action")
	switch action {
	case "register":
		if requirePOST(c) {
			h.register(c)
		}
	case "login":
		if requirePOST(c) {
			h.login(c)
		}
	case "setVIP":
		if requirePOST(c) {
			h.setVIP(c)
		}
	case "me":
		h.me(c)
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success":          false,
			"error":            "Invalid action",
			"availableActions": availableActions,
		})
	}
}

func requirePOST(c *gin.Context) bool {
	if c.Request.Method != http.MethodPost {
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, errorBody("Only POST is supported"))
		return false
	}
	return true
}

func (h *AuthHandler) register(c *gin.Context) {
	var body credentialsRequest
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		h.fail(c, "register", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Registration successful",
		"user":    user,
	})
}

func (h *AuthHandler) login(c *gin.Context) {
	var body credentialsRequest
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err)
		return
	}

	session, err := h.auth.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    session.User,
		"token":   session.Token,
	})
}

func (h *AuthHandler) setVIP(c *gin.Context) {
	if h.adminToken != "" && !tokenMatches(bearerToken(c), h.adminToken) {
		abortWithError(c, fmt.Errorf("%w: admin token required", shared.ErrForbidden))
		return
	}

	var body vipRequest
	if err := bindJSON(c, &body); err != nil {
		abortWithError(c, err)
		return
	}

	if err := h.auth.SetVIP(c.Request.Context(), body.Username, body.IsVIP); err != nil {
		h.fail(c, "setVIP", err)
		return
	}

	status := "regular user"
	if body.IsVIP {
		status = "VIP user"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("User %s is now a %s", body.Username, status),
	})
}

func (h *AuthHandler) me(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		abortWithError(c, fmt.Errorf("%w: bearer token required", shared.ErrNotAuthenticated))
		return
	}

	user, err := h.auth.Profile(c.Request.Context(), token)
	if err != nil {
		h.fail(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *AuthHandler) fail(c *gin.Context, action string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("auth action failed", "action", action, "err", err)
	}
	c.AbortWithStatusJSON(status, errorBody(err.Error()))
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func tokenMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
