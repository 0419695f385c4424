package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"profitcruiser/internal/state"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sessionTTL = 7 * 24 * time.Hour

var (
	// ErrMissingCredentials indicates an incomplete register/login request.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Service issues and resolves bearer sessions against the state store.
type Service struct {
	store  *state.Store
	logger *slog.Logger
}

// New creates the auth service.
func New(store *state.Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With("component", "auth"),
	}
}

// Register creates a user with role "user" and an initial session.
func (s *Service) Register(email, username, password string) (state.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || strings.TrimSpace(username) == "" || password == "" {
		return state.User{}, "", ErrMissingCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return state.User{}, "", fmt.Errorf("hash password: %w", err)
	}

	var (
		user  state.User
		token string
	)
	err = s.store.Update(func(doc *state.Document) error {
		if doc.FindUserByEmail(email) != nil {
			return ErrEmailTaken
		}
		user = state.User{
			ID:           uuid.NewString(),
			Email:        email,
			Username:     username,
			PasswordHash: string(hash),
			Role:         state.RoleUser,
			CreatedAt:    time.Now().UTC(),
		}
		doc.Users = append(doc.Users, user)
		token = newSession(doc, user.ID)
		doc.AppendActivity(fmt.Sprintf("User %s registered", username))
		return nil
	})
	if err != nil {
		return state.User{}, "", err
	}
	return user, token, nil
}

// Login verifies the password and issues a fresh session.
func (s *Service) Login(email, password string) (state.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return state.User{}, "", ErrMissingCredentials
	}

	var (
		user  state.User
		token string
	)
	err := s.store.Update(func(doc *state.Document) error {
		found := doc.FindUserByEmail(email)
		if found == nil {
			return ErrInvalidCredentials
		}
		if bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)) != nil {
			return ErrInvalidCredentials
		}
		now := time.Now().UTC()
		found.LastLoginAt = &now
		user = *found
		token = newSession(doc, found.ID)
		doc.AppendActivity(fmt.Sprintf("User %s logged in", found.Username))
		return nil
	})
	if err != nil {
		return state.User{}, "", err
	}
	return user, token, nil
}

// Authenticate resolves the bearer token on a request to a user. Expired
// sessions are evicted on first failed lookup. Returns ok=false for
// missing, unknown or expired tokens.
func (s *Service) Authenticate(r *http.Request) (state.User, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return state.User{}, false
	}
	token := strings.TrimPrefix(header, "Bearer ")

	var (
		user    state.User
		ok      bool
		expired bool
	)
	s.store.View(func(doc *state.Document) {
		for i := range doc.Sessions {
			if doc.Sessions[i].Token != token {
				continue
			}
			if time.Now().After(doc.Sessions[i].ExpiresAt) {
				expired = true
				return
			}
			if u := doc.FindUserByID(doc.Sessions[i].UserID); u != nil {
				user = *u
				ok = true
			}
			return
		}
	})

	if expired {
		if err := s.store.Update(func(doc *state.Document) error {
			for i := range doc.Sessions {
				if doc.Sessions[i].Token == token {
					doc.Sessions = append(doc.Sessions[:i], doc.Sessions[i+1:]...)
					break
				}
			}
			return nil
		}); err != nil {
			s.logger.Warn("failed evicting expired session", "error", err)
		}
	}

	return user, ok
}

// EnsureAdmin seeds the default admin account if none exists. Run once
// at startup.
func (s *Service) EnsureAdmin() error {
	needed := false
	s.store.View(func(doc *state.Document) {
		needed = !doc.HasAdmin()
	})
	if !needed {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(state.DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	return s.store.Update(func(doc *state.Document) error {
		if doc.HasAdmin() {
			return nil
		}
		doc.Users = append(doc.Users, state.User{
			ID:           uuid.NewString(),
			Email:        state.DefaultAdminEmail,
			Username:     "Admin",
			PasswordHash: string(hash),
			Role:         state.RoleAdmin,
			CreatedAt:    time.Now().UTC(),
		})
		s.logger.Info("seeded default admin account", "email", state.DefaultAdminEmail)
		return nil
	})
}

func newSession(doc *state.Document, userID string) string {
	token := uuid.NewString() + uuid.NewString()
	now := time.Now().UTC()
	doc.Sessions = append(doc.Sessions, state.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionTTL),
	})
	return token
}
