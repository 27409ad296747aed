package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"imagefolders/models"
	"imagefolders/utils"
)

const defaultRole = "user"

// Session is the result of a successful login.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

type UserService struct {
	users    UserStore
	tokens   *utils.TokenIssuer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewUserService(users UserStore, tokens *utils.TokenIssuer, logger *slog.Logger) *UserService {
	return &UserService{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *UserService) Register(ctx context.Context, in models.UserRegister) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validate.Struct(in); err != nil {
		return nil, invalid(validationMessage(err))
	}

	_, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, invalid("User already exists with this email.")
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	hash, err := utils.HashPass(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		Role:     defaultRole,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, invalid("User already exists with this email.")
		}
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID.Hex())
	return user, nil
}

// Login checks the credentials and issues a session token.
func (s *UserService) Login(ctx context.Context, in models.UserLogin) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, invalid("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, badCredentials()
		}
		return nil, err
	}
	if err := utils.ComparePass(in.Password, user.Password); err != nil {
		if !errors.Is(err, utils.ErrIncorrectPassword) {
			s.logger.Warn("stored password hash unreadable", "user_id", user.ID.Hex(), "error", err)
		}
		return nil, badCredentials()
	}

	token, err := s.tokens.SignedToken(user.ID, user.Username, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID.Hex())
	return &Session{
		User:      user,
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
	}, nil
}

func (s *UserService) Profile(ctx context.Context, id bson.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, "User not found")
	}
	return user, nil
}

// validationMessage turns the first validator failure into a sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}
