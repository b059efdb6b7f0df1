/*
Package account registers identities and exchanges credentials for session tokens.
*/
package account

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"rtchat/internal/app/model"
	"rtchat/internal/app/store"
	"rtchat/internal/pkg/auth/jwt"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/randx"
)

const (
	minPasswordLen = 6
	maxPasswordLen = 50

	DemoUsername = "demo"
	DemoPassword = "demo123"
)

// Store is the part of the storage adapter the account service needs.
type Store interface {
	SaveAccount(ctx context.Context, account model.Account) (model.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (model.Account, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// Session is what a successful registration or login returns to the client.
type Session struct {
	Token     string
	User      model.User
	ExpiresAt time.Time
}

type Service struct {
	store    Store
	verifier *jwt.Verifier
	cost     int
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(s Store, verifier *jwt.Verifier) *Service {
	return &Service{
		store:    s,
		verifier: verifier,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logx.Component("account"),
	}
}

// Register creates an identity and signs a credential for it.
func (s *Service) Register(ctx context.Context, username, password string) (Session, error) {
	if !randx.IsValidUsername(username) {
		return Session{}, errs.NewError(errs.ErrInvalidUsername)
	}

	if n := utf8.RuneCountInString(password); n < minPasswordLen || n > maxPasswordLen {
		return Session{}, errs.NewError(errs.ErrInvalidPassword)
	}

	if _, err := s.store.FindAccountByUsername(ctx, username); err == nil {
		return Session{}, errs.NewError(errs.ErrUserAlreadyExists)
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("lookup username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.store.SaveAccount(ctx, model.Account{
		ID:           randx.UserID(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	})
	if errors.Is(err, store.ErrDuplicate) {
		s.logger.Warn().Str("username", username).Msg("Registration conflict: username already exists")
		return Session{}, errs.NewError(errs.ErrUserAlreadyExists)
	}
	if err != nil {
		return Session{}, fmt.Errorf("save account: %w", err)
	}

	s.logger.Info().Str("user_id", account.ID).Str("username", username).Msg("Account registered")
	return s.issue(account.User())
}

// Login checks the password of username. Unknown usernames and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (Session, error) {
	account, err := s.store.FindAccountByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn().Str("username", username).Msg("Login: unknown username")
		return Session{}, errs.NewError(errs.ErrInvalidCredentials)
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup username: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("Login: password mismatch")
		return Session{}, errs.NewError(errs.ErrInvalidCredentials)
	}

	return s.issue(account.User())
}

// ListUsers returns every registered identity.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// SeedDemo registers the demo account unless it already exists.
func (s *Service) SeedDemo(ctx context.Context) error {
	_, err := s.Register(ctx, DemoUsername, DemoPassword)
	if errors.Is(err, errs.NewError(errs.ErrUserAlreadyExists)) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed demo account: %w", err)
	}
	s.logger.Info().Str("username", DemoUsername).Msg("Demo account created")
	return nil
}

func (s *Service) issue(u model.User) (Session, error) {
	token, expiresAt, err := s.verifier.IssueCredential(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: u, ExpiresAt: expiresAt}, nil
}
