package usecases

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/abelzeko/aquaguard/internal/entities"
	"github.com/google/uuid"
)

// Errors returned by the use cases
var (
	ErrValidation = errors.New("validation failed")
	ErrForbidden  = errors.New("not allowed for this role")
	ErrNotFound   = errors.New("not found")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LoginForm holds what the login screen collects
type LoginForm struct {
	Email    string
	Password string
	Name     string
}

// Session is the client-held login state of one view. The password is never
// checked and nothing is verified server side, so the role only gates what
// this client shows.
type Session struct {
	mu   sync.RWMutex
	user *entities.User
}

// NewSession returns an unauthenticated session
func NewSession() *Session {
	return &Session{}
}

// Login validates the form shape and sets the current user with role.
// Surrounding spaces are trimmed from the email before it is checked, so
// " a@b.com " signs in as "a@b.com". The password is never checked and
// nothing is verified with the backend.
func (s *Session) Login(form LoginForm, role entities.Role) (entities.User, error) {
	email := strings.TrimSpace(form.Email)
	if email == "" || form.Password == "" {
		return entities.User{}, fmt.Errorf("%w: Please fill in all fields", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return entities.User{}, fmt.Errorf("%w: Please enter a valid email", ErrValidation)
	}
	if !role.Valid() {
		return entities.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	name := strings.TrimSpace(form.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	user := entities.User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
		Role:  role,
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return user, nil
}

// Logout clears the session
func (s *Session) Logout() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
}

// Current returns the logged in user, if any
func (s *Session) Current() (entities.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return entities.User{}, false
	}
	return *s.user, true
}

// Role returns the current role or "" when logged out
func (s *Session) Role() entities.Role {
	user, ok := s.Current()
	if !ok {
		return ""
	}
	return user.Role
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

func (s *Session) HasRole(role entities.Role) bool {
	return s.IsAuthenticated() && s.Role() == role
}
