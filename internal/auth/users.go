package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/pkg/logger_i"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type User struct {
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	IsAdmin      bool   `json:"is_admin"`
}

type Options struct {
	File          string
	AdminEmail    string
	AdminPassword string
}

// UserStore keeps users in a JSON object keyed by email. Every change
// rewrites the whole file.
type UserStore struct {
	path          string
	adminEmail    string
	adminPassword string
	mu            sync.Mutex
	logger        *logger_i.Logger
}

func NewUserStore(opts Options) *UserStore {
	return &UserStore{
		path:          opts.File,
		adminEmail:    opts.AdminEmail,
		adminPassword: opts.AdminPassword,
		logger:        logger_i.NewLogger("UserStore"),
	}
}

func (s *UserStore) load() (map[string]User, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	users := map[string]User{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return users, nil
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse users %s: %w", s.path, err)
	}
	return users, nil
}

func (s *UserStore) save(users map[string]User) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".users-*.json")
	if err != nil {
		return fmt.Errorf("write users: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write users: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

var compareHash = bcrypt.CompareHashAndPassword

// missHash is compared against when the email is unknown, so a miss costs
// the same bcrypt work as a wrong password.
var missHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("docqa-unknown-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

// Verify reports whether password matches the stored hash. Hashes written by
// older versions (hex sha256) are accepted once and upgraded to bcrypt.
// The store lock is only held while reading the file.
func (s *UserStore) Verify(email, password string) bool {
	email = normalizeEmail(email)
	s.mu.Lock()
	users, err := s.load()
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("Could not load users", "error", err)
		return false
	}

	u, ok := users[email]
	if !ok {
		_ = compareHash(missHash(), []byte(password))
		return false
	}
	if isLegacyHash(u.PasswordHash) {
		sum := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(u.PasswordHash)) != 1 {
			return false
		}
		s.upgradeHash(email, u.PasswordHash, password)
		return true
	}
	return compareHash([]byte(u.PasswordHash), []byte(password)) == nil
}

// upgradeHash replaces a legacy hash unless the password changed meanwhile.
func (s *UserStore) upgradeHash(email, legacy, password string) {
	hash, err := hashPassword(password)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return
	}
	u, ok := users[email]
	if !ok || u.PasswordHash != legacy {
		return
	}
	u.PasswordHash = hash
	users[email] = u
	if err := s.save(users); err != nil {
		s.logger.Warn("Could not upgrade password hash", "email", email, "error", err)
	}
}

// CreateDefaultIdentity adds the configured admin account unless it already exists.
func (s *UserStore) CreateDefaultIdentity() error {
	err := s.CreateUser(s.adminEmail, s.adminPassword, true)
	if errors.Is(err, ErrUserExists) {
		return nil
	}
	if err == nil {
		s.logger.Info("Created default user", "email", normalizeEmail(s.adminEmail))
	}
	return err
}

func (s *UserStore) CreateUser(email, password string, isAdmin bool) error {
	email = normalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := users[email]; ok {
		return ErrUserExists
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	users[email] = User{Email: email, PasswordHash: hash, IsAdmin: isAdmin}
	return s.save(users)
}

func (s *UserStore) ChangePassword(email, oldPassword, newPassword string) error {
	email = normalizeEmail(email)
	if err := validateCredentials(email, newPassword); err != nil {
		return err
	}
	if !s.Verify(email, oldPassword) {
		return ErrInvalidCredentials
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return err
	}
	u, ok := users[email]
	if !ok {
		return ErrInvalidCredentials
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	users[email] = u
	return s.save(users)
}

// Get returns the user without checking the password.
func (s *UserStore) Get(email string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, err := s.load()
	if err != nil {
		return User{}, false
	}
	u, ok := users[normalizeEmail(email)]
	return u, ok
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func isLegacyHash(h string) bool {
	if len(h) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(h)
	return err == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	if email == "" || !strings.Contains(email, "@") {
		return &commonModels.ValidationError{Field: "email", Reason: "must be an email address"}
	}
	if password == "" {
		return &commonModels.ValidationError{Field: "password", Reason: "must not be empty"}
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return &commonModels.ValidationError{Field: "password", Reason: "must be at most 72 bytes"}
	}
	return nil
}
