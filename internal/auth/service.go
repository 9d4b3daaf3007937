package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when login/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register an existing login.
	ErrUserExists = errors.New("user already exists")
	// ErrNickTaken is returned when trying to register with a nick in use.
	ErrNickTaken = errors.New("nick already taken")
	// ErrInvalidLogin is returned when login doesn't meet constraints.
	ErrInvalidLogin = errors.New("invalid login")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidNick is returned when nick doesn't meet constraints.
	ErrInvalidNick = core.ErrInvalidNick
)

const (
	minNickLen = 1
	maxNickLen = 32
)

// DemoAccount is an account created on an empty store.
type DemoAccount struct {
	Login    string
	Password string
	Nick     string
}

// DemoAccounts are the accounts the chat ships with.
var DemoAccounts = []DemoAccount{
	{Login: "David", Password: "qazwsx", Nick: "Давид"},
	{Login: "Viktor", Password: "qwerty", Nick: "Виктор"},
	{Login: "Vladimir", Password: "123456", Nick: "Владимир"},
}

// Service verifies credentials and manages accounts. It implements
// core.Verifier and core.NickRenamer on top of a store.UserStore.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Verify checks credentials and returns the account's identity.
func (s *Service) Verify(ctx context.Context, login, password string) (*core.Identity, error) {
	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, core.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return nil, core.ErrUnauthorized
	}

	return core.NewIdentity(user.ID, user.Login, user.Nick), nil
}

// RenameNick persists a nick change. The new nick follows the same rules as at registration.
func (s *Service) RenameNick(ctx context.Context, oldNick, newNick string) error {
	if !validName(newNick, minNickLen, maxNickLen) {
		return ErrInvalidNick
	}
	err := s.store.RenameUser(ctx, oldNick, newNick)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNickTaken):
		return core.ErrRenameConflict
	default:
		return fmt.Errorf("%w: %w", core.ErrStoreUnavailable, err)
	}
}

// Register creates a new account with a hashed password.
func (s *Service) Register(ctx context.Context, login, password, nick string) (*store.User, error) {
	login = strings.TrimSpace(login)
	nick = strings.TrimSpace(nick)
	if !validName(login, 3, 32) {
		return nil, ErrInvalidLogin
	}
	if len(password) < 6 || strings.ContainsFunc(password, unicode.IsSpace) {
		return nil, ErrInvalidPassword
	}
	if !validName(nick, minNickLen, maxNickLen) {
		return nil, ErrInvalidNick
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, login, hashedPassword, nick)
	switch {
	case errors.Is(err, store.ErrLoginTaken):
		return nil, ErrUserExists
	case errors.Is(err, store.ErrNickTaken):
		return nil, ErrNickTaken
	case err != nil:
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login validates credentials and returns a JWT token for the admin API.
func (s *Service) Login(ctx context.Context, login, password string) (string, error) {
	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return "", err
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, user.Login, user.Nick)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// SeedDemoAccounts creates DemoAccounts when the store has no accounts yet.
// It returns the number of accounts created.
func (s *Service) SeedDemoAccounts(ctx context.Context) (int, error) {
	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	for i, acc := range DemoAccounts {
		if _, err := s.Register(ctx, acc.Login, acc.Password, acc.Nick); err != nil {
			return i, fmt.Errorf("seed %s: %w", acc.Login, err)
		}
	}
	return len(DemoAccounts), nil
}

func validName(name string, minLen, maxLen int) bool {
	n := len([]rune(name))
	if n < minLen || n > maxLen {
		return false
	}
	return !strings.ContainsFunc(name, unicode.IsSpace)
}
