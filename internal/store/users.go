package store

import (
	"database/sql"
	"errors"
	"log"

	"github.com/lib/pq"

	"github.com/jpratt/chatterd/internal/apperr"
	"github.com/jpratt/chatterd/internal/auth"
	"github.com/jpratt/chatterd/internal/database"
	"github.com/jpratt/chatterd/internal/types"
)

const uniqueViolation = "23505"

// UserStore is the user-lookup collaborator consumed by the room store, the
// gateway and the HTTP auth handlers.
type UserStore struct {
	log *log.Logger
	db  database.Repository
}

func NewUserStore(logger *log.Logger, db database.Repository) *UserStore {
	return &UserStore{
		log: logger,
		db:  db,
	}
}

func (s *UserStore) Create(email, password string) (types.User, error) {
	if email == "" {
		return types.User{}, apperr.Validation("email must not be empty", "email")
	}
	if password == "" {
		return types.User{}, apperr.Validation("password must not be empty", "password")
	}

	pwdHash, err := auth.HashPassword(password)
	if err != nil {
		return types.User{}, apperr.Storage("failed to hash password", err)
	}

	user, err := s.db.CreateUser(database.CreateUserParams{
		Email:        email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return types.User{}, apperr.Validation("email already registered", "email")
		}
		return types.User{}, apperr.Storage("failed to create user", err)
	}

	return toUser(user), nil
}

// Authenticate verifies the email/password pair and returns the sanitized
// user on success.
func (s *UserStore) Authenticate(email, password string) (types.User, error) {
	user, err := s.db.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, apperr.Authentication("invalid credentials")
		}
		return types.User{}, apperr.Storage("failed to look up user", err)
	}

	if !auth.VerifyPassword(user.PasswordHash, password) {
		return types.User{}, apperr.Authentication("invalid credentials")
	}

	return toUser(user), nil
}

func (s *UserStore) FindById(id string) (types.User, error) {
	user, err := s.db.GetUserById(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, apperr.NotFound("user " + id + " not found")
		}
		return types.User{}, apperr.Storage("failed to look up user", err)
	}

	return toUser(user), nil
}

func (s *UserStore) FindByEmail(email string) (types.User, error) {
	user, err := s.db.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, apperr.NotFound("user with email " + email + " not found")
		}
		return types.User{}, apperr.Storage("failed to look up user", err)
	}

	return toUser(user), nil
}
