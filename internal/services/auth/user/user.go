package user

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/louisbranch/huddle/internal/platform/errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the cost used for seeded and registered accounts.
const DefaultBcryptCost = 12

const avatarBaseURL = "https://api.dicebear.com/7.x/avataaars/svg?seed="

// Status values accepted by SetStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusAway    = "away"
	StatusBusy    = "busy"
)

var (
	// ErrMissingLogin indicates a login without a password or identifier.
	ErrMissingLogin = apperrors.New(apperrors.CodeUserMissingFields, "Username or email and password are required")
	// ErrMissingRegistration indicates a registration with empty fields.
	ErrMissingRegistration = apperrors.New(apperrors.CodeUserMissingFields, "Username, email, and password are required")
	// ErrInvalidEmail indicates a malformed email address.
	ErrInvalidEmail = apperrors.New(apperrors.CodeUserInvalidEmail, "Invalid email format")
	// ErrWeakCredentials indicates a short username or password.
	ErrWeakCredentials = apperrors.New(apperrors.CodeUserWeakCredentials, "Invalid username or weak password")
	// ErrAlreadyExists indicates a username or email collision.
	ErrAlreadyExists = apperrors.New(apperrors.CodeUserAlreadyExists, "User already exists")
	// ErrInvalidCredentials covers unknown users and wrong passwords alike.
	ErrInvalidCredentials = apperrors.New(apperrors.CodeUserInvalidCredentials, "Invalid credentials")
	// ErrInvalidStatus indicates a status outside the accepted set.
	ErrInvalidStatus = apperrors.New(apperrors.CodeUserInvalidStatus, "Invalid status")
	// ErrNotFound indicates an unknown user id.
	ErrNotFound = apperrors.New(apperrors.CodeUserNotFound, "User not found")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// User is a directory account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	Role         string
	Status       string
	Avatar       string
	LastSeen     time.Time
	CreatedAt    time.Time
}

// Public is the sanitized view returned to clients.
type Public struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
	Avatar   string    `json:"avatar"`
}

// Public strips credentials and contact details.
func (u User) Public() Public {
	return Public{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
		Status:   u.Status,
		LastSeen: u.LastSeen,
		Avatar:   u.Avatar,
	}
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Config configures a Directory.
type Config struct {
	BcryptCost int
	Now        func() time.Time
	NewID      func() string
}

// Directory is a concurrency-safe in-memory account store.
type Directory struct {
	mu    sync.RWMutex
	users []*User
	cost  int
	now   func() time.Time
	newID func() string
}

type seedUser struct {
	id, username, email, password, role, status string
	lastSeenAgo                                 time.Duration
}

var seedUsers = []seedUser{
	{id: "user1", username: "alice", email: "alice@chat.com", password: "password123", role: "admin", status: StatusOnline},
	{id: "user2", username: "bob", email: "bob@chat.com", password: "bobsecret", role: "user", status: StatusOffline, lastSeenAgo: time.Hour},
	{id: "user3", username: "charlie", email: "charlie@chat.com", password: "charlie2024", role: "moderator", status: StatusOnline},
}

// NewDirectory builds a directory holding the seeded accounts.
func NewDirectory(cfg Config) (*Directory, error) {
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		cfg.BcryptCost = DefaultBcryptCost
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	d := &Directory{cost: cfg.BcryptCost, now: cfg.Now, newID: cfg.NewID}

	now := d.now().UTC()
	for _, seed := range seedUsers {
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), d.cost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", seed.username, err)
		}
		d.users = append(d.users, &User{
			ID:           seed.id,
			Username:     seed.username,
			Email:        seed.email,
			PasswordHash: hash,
			Role:         seed.role,
			Status:       seed.status,
			Avatar:       avatarBaseURL + seed.username,
			LastSeen:     now.Add(-seed.lastSeenAgo),
			CreatedAt:    now,
		})
	}
	return d, nil
}

// Authenticate checks a password against the account matching username or
// email and marks it online.
func (d *Directory) Authenticate(username, email, password string) (User, error) {
	if password == "" || (username == "" && email == "") {
		return User{}, ErrMissingLogin
	}

	d.mu.RLock()
	account := d.findLocked(username, email)
	var hash []byte
	if account != nil {
		hash = account.PasswordHash
	}
	d.mu.RUnlock()
	if account == nil {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	account.Status = StatusOnline
	account.LastSeen = d.now().UTC()
	return *account, nil
}

// Register creates a regular offline account.
func (d *Directory) Register(input RegisterInput) (User, error) {
	if input.Username == "" || input.Email == "" || input.Password == "" {
		return User{}, ErrMissingRegistration
	}
	if !emailPattern.MatchString(input.Email) {
		return User{}, ErrInvalidEmail
	}
	if len(input.Username) < 3 || len(input.Password) < 8 {
		return User{}, ErrWeakCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), d.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.findLocked(input.Username, input.Email) != nil {
		return User{}, ErrAlreadyExists
	}
	now := d.now().UTC()
	account := &User{
		ID:           d.newID(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         "user",
		Status:       StatusOffline,
		Avatar:       avatarBaseURL + input.Username,
		LastSeen:     now,
		CreatedAt:    now,
	}
	d.users = append(d.users, account)
	return *account, nil
}

// Get returns the account with the given id.
func (d *Directory) Get(id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, account := range d.users {
		if account.ID == id {
			return *account, nil
		}
	}
	return User{}, ErrNotFound
}

// SetStatus updates presence and last-seen for id.
func (d *Directory) SetStatus(id, status string) (User, error) {
	if !ValidStatus(status) {
		return User{}, ErrInvalidStatus
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, account := range d.users {
		if account.ID == id {
			account.Status = status
			account.LastSeen = d.now().UTC()
			return *account, nil
		}
	}
	return User{}, ErrNotFound
}

// ValidStatus reports whether status is an accepted presence value.
func ValidStatus(status string) bool {
	switch status {
	case StatusOnline, StatusOffline, StatusAway, StatusBusy:
		return true
	default:
		return false
	}
}

func (d *Directory) findLocked(username, email string) *User {
	for _, account := range d.users {
		if (username != "" && account.Username == username) || (email != "" && account.Email == email) {
			return account
		}
	}
	return nil
}
