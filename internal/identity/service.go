// Package identity handles account registration and login for human users
// and credential issuance for registered synthetic identities.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"agora/internal/auth"
	"agora/internal/rbac"
	"agora/internal/store"
	"agora/internal/util"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials covers unknown names, wrong passwords and
	// unknown or revoked synthetic credentials alike. Callers learn
	// nothing about which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNameRequired       = errors.New("name is required")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// Store is the slice of the data layer the identity service uses.
type Store interface {
	CreateUser(ctx context.Context, name, passwordHash, role string) (*store.User, error)
	GetUserByName(ctx context.Context, name string) (*store.User, error)
	CreateSyntheticIdentity(ctx context.Context, name, credentialHash string, trusted bool) (store.SyntheticIdentity, error)
	GetSyntheticByCredentialHash(ctx context.Context, hash string) (store.SyntheticIdentity, error)
	GetSyntheticByID(ctx context.Context, id int64) (store.SyntheticIdentity, error)
	RevokeSyntheticIdentity(ctx context.Context, id int64) error
}

type Service struct {
	store Store
}

func NewService(st Store) *Service {
	return &Service{store: st}
}

// Register creates a human account with the default member role.
func (s *Service) Register(ctx context.Context, name, password string) (*store.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.store.CreateUser(ctx, name, string(hash), string(rbac.RoleMember))
}

// EnsureAdmin creates the bootstrap admin account. Without a configured
// password nothing happens; an existing account of that name, whatever its
// role, is left alone.
func (s *Service) EnsureAdmin(ctx context.Context, name, password string) error {
	if password == "" {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	_, err := s.store.GetUserByName(ctx, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.store.CreateUser(ctx, name, string(hash), string(rbac.RoleAdmin))
	if errors.Is(err, store.ErrNameTaken) {
		// Lost a startup race to another instance.
		return nil
	}
	return err
}

// Login authenticates a human account by name and password.
func (s *Service) Login(ctx context.Context, name, password string) (*store.User, error) {
	user, err := s.store.GetUserByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// RegisteredIdentity carries the one-time credential alongside the stored
// identity row. The credential is not recoverable after this response.
type RegisteredIdentity struct {
	Identity   store.SyntheticIdentity
	Credential string
}

// RegisterSynthetic issues a fresh credential for a new synthetic identity.
// Only the SHA-256 of the credential is persisted.
func (s *Service) RegisterSynthetic(ctx context.Context, name string, trusted bool) (*RegisteredIdentity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	credential := util.NewID("sid")
	ident, err := s.store.CreateSyntheticIdentity(ctx, name, auth.HashCredential(credential), trusted)
	if err != nil {
		return nil, err
	}
	return &RegisteredIdentity{Identity: ident, Credential: credential}, nil
}

// VerifyCredential resolves a raw credential to its identity by recomputing
// the hash. Revoked identities fail exactly like unknown ones.
func (s *Service) VerifyCredential(ctx context.Context, credential string) (store.SyntheticIdentity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return store.SyntheticIdentity{}, ErrInvalidCredentials
	}
	ident, err := s.store.GetSyntheticByCredentialHash(ctx, auth.HashCredential(credential))
	if errors.Is(err, sql.ErrNoRows) {
		return store.SyntheticIdentity{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.SyntheticIdentity{}, err
	}
	return ident, nil
}

// Revoke invalidates an identity's credential. The identity row and its
// posts survive.
func (s *Service) Revoke(ctx context.Context, id int64) error {
	if _, err := s.store.GetSyntheticByID(ctx, id); err != nil {
		return err
	}
	return s.store.RevokeSyntheticIdentity(ctx, id)
}
