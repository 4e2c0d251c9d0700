// Package auth implements accounts: registration, login by credentials or
// linked Telegram identity, JWT issuance, and profile changes. It sits at
// the boundary of the room core and never touches room state.
package auth

import (
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"time"

	"omilia/backend/internal/models"
	"omilia/backend/internal/storage"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	ErrLoginTaken         = errors.New("user with this login already exists")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrNoTelegramUser     = errors.New("no user with this telegram_id; please login with login/password and link your telegram_id")
	ErrTelegramLinked     = errors.New("this telegram_id is already linked to another account")
	ErrUsernameTaken      = errors.New("this username is already taken")
	ErrInvalidToken       = errors.New("invalid token or expired")
)

const (
	accessTokenTTL     = 15 * time.Minute
	refreshTokenTTL    = time.Hour
	rememberRefreshTTL = 30 * 24 * time.Hour

	tokenIssuer = "omilia-backend"
)

// Service handles account logic and token issuance.
type Service struct {
	Storage storage.Storage
	secret  []byte
}

// NewService creates the auth service with the HS256 signing secret.
func NewService(s storage.Storage, jwtSecret string) *Service {
	return &Service{Storage: s, secret: []byte(jwtSecret)}
}

// Register creates an account with a generated public username.
func (s *Service) Register(login, password string) (*models.User, error) {
	if _, err := s.Storage.UserByLogin(login); err == nil {
		return nil, ErrLoginTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	username, err := s.freeUsername()
	if err != nil {
		return nil, err
	}

	user := &models.User{Login: login, Username: username, Role: "user"}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.Storage.CreateUser(user); err != nil {
		return nil, err
	}
	log.Printf("INFO: user registered successfully: %s", login)
	return user, nil
}

// freeUsername draws generated names until one is unused.
func (s *Service) freeUsername() (string, error) {
	for {
		username := fmt.Sprintf("user_%08d", 10000000+rand.IntN(90000000))
		taken, err := s.Storage.UsernameTaken(username)
		if err != nil {
			return "", err
		}
		if !taken {
			return username, nil
		}
	}
}

// Login authenticates by login+password or, when both are empty, by a
// linked telegram_id. Returns the user plus access and refresh tokens.
func (s *Service) Login(login, password, telegramID string, remember bool) (*models.User, string, string, error) {
	var user *models.User

	switch {
	case login != "" && password != "":
		u, err := s.Storage.UserByLogin(login)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", "", ErrInvalidCredentials
		}
		if err != nil {
			return nil, "", "", err
		}
		if !u.CheckPassword(password) {
			return nil, "", "", ErrInvalidCredentials
		}
		user = u

	case telegramID != "":
		u, err := s.Storage.UserByTelegramID(telegramID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", "", ErrNoTelegramUser
		}
		if err != nil {
			return nil, "", "", err
		}
		user = u

	default:
		return nil, "", "", ErrInvalidCredentials
	}

	access, err := s.AccessToken(user.ID)
	if err != nil {
		return nil, "", "", err
	}
	refresh, err := s.RefreshToken(user.ID, remember)
	if err != nil {
		return nil, "", "", err
	}
	return user, access, refresh, nil
}

// AccessToken issues a short-lived access token for the user.
func (s *Service) AccessToken(userID uint) (string, error) {
	return s.signToken(userID, "access", accessTokenTTL)
}

// RefreshToken issues a refresh token; remember-me stretches its lifetime.
func (s *Service) RefreshToken(userID uint, remember bool) (string, error) {
	ttl := refreshTokenTTL
	if remember {
		ttl = rememberRefreshTTL
	}
	return s.signToken(userID, "refresh", ttl)
}

func (s *Service) signToken(userID uint, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"typ": typ,
		"iss": tokenIssuer,
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken validates a token of the given type ("access" or "refresh")
// and returns the user ID it carries.
func (s *Service) ParseToken(tokenString, wantType string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return 0, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(userID), nil
}

// LinkTelegram attaches a Telegram identity to the account.
func (s *Service) LinkTelegram(user *models.User, telegramID string) error {
	if _, err := s.Storage.UserByTelegramID(telegramID); err == nil {
		return ErrTelegramLinked
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	user.TelegramID = &telegramID
	return s.Storage.UpdateUser(user)
}

// ChangeUsername replaces the public display name.
func (s *Service) ChangeUsername(user *models.User, username string) error {
	taken, err := s.Storage.UsernameTaken(username)
	if err != nil {
		return err
	}
	if taken {
		return ErrUsernameTaken
	}
	user.Username = username
	return s.Storage.UpdateUser(user)
}
