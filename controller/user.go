package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
	"imagefolders/service"
)

// SessionCookie carries the session token in browsers.
const SessionCookie = "token"

type UserService interface {
	Register(ctx context.Context, in models.UserRegister) (*models.User, error)
	Login(ctx context.Context, in models.UserLogin) (*service.Session, error)
	Profile(ctx context.Context, id bson.ObjectID) (*models.User, error)
}

type UserController struct {
	users        UserService
	cookieSecure bool
	logger       *slog.Logger
}

func NewUserController(users UserService, cookieSecure bool, logger *slog.Logger) *UserController {
	return &UserController{users: users, cookieSecure: cookieSecure, logger: logger}
}

func (h *UserController) RegisterUser(c *gin.Context) {
	var req models.UserRegister
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.Register(ctx, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "User registered successfully",
		"user":    user.Summary(),
	})
}

func (h *UserController) Login(c *gin.Context) {
	var req models.UserLogin
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	session, err := h.users.Login(ctx, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(time.Until(session.ExpiresAt).Seconds()),
		Secure:   h.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    session.User.Summary(),
		"token":   session.Token,
	})
}

func (h *UserController) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   h.cookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logout successful"})
}

func (h *UserController) Profile(c *gin.Context) {
	userID, ok := owner(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.Profile(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}
