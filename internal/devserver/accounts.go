package devserver

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/campus/internal/role"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "campus123"

// SeedUser describes an account created at startup.
type SeedUser struct {
	Username   string
	Email      string
	FullName   string
	EmployeeID string
	Role       role.Role
	Password   string
}

// DefaultUsers seeds one account per role.
func DefaultUsers() []SeedUser {
	return []SeedUser{
		{Username: "alice", Email: "alice@campus.test", FullName: "Alice Nguyen", EmployeeID: "T-001", Role: role.Teacher},
		{Username: "ben", Email: "ben@campus.test", FullName: "Ben Tran", EmployeeID: "LA-001", Role: role.LearningAdvisor},
		{Username: "mai", Email: "mai@campus.test", FullName: "Mai Pham", EmployeeID: "M-001", Role: role.Manager},
	}
}

type account struct {
	ID           string
	EmployeeID   string
	Username     string
	Email        string
	FullName     string
	Role         role.Role
	PasswordHash []byte
}

// accounts is the in-memory user directory.
type accounts struct {
	mu         sync.RWMutex
	byUsername map[string]*account
	cost       int
}

func newAccounts(cost int) *accounts {
	return &accounts{
		byUsername: make(map[string]*account),
		cost:       cost,
	}
}

func (a *accounts) add(seed SeedUser) error {
	password := seed.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.byUsername[strings.ToLower(seed.Username)] = &account{
		ID:           uuid.NewString(),
		EmployeeID:   seed.EmployeeID,
		Username:     seed.Username,
		Email:        strings.ToLower(seed.Email),
		FullName:     seed.FullName,
		Role:         seed.Role,
		PasswordHash: hash,
	}
	return nil
}

// lookup finds an account by username or email.
func (a *accounts) lookup(login string) (*account, bool) {
	login = strings.ToLower(strings.TrimSpace(login))
	a.mu.RLock()
	defer a.mu.RUnlock()
	if acc, ok := a.byUsername[login]; ok {
		return acc, true
	}
	for _, acc := range a.byUsername {
		if acc.Email == login {
			return acc, true
		}
	}
	return nil, false
}

func (a *accounts) checkPassword(acc *account, password string) bool {
	a.mu.RLock()
	hash := acc.PasswordHash
	a.mu.RUnlock()
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

func (a *accounts) setPassword(acc *account, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	acc.PasswordHash = hash
	return nil
}
