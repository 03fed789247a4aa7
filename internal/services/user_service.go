package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/coreledger/backend/internal/models"
)

type UserService struct {
	db *sql.DB
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{db: db}
}

// Create registers a new user with a bcrypt password hash.
func (us *UserService) Create(ctx context.Context, name, email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Name:  name,
		Email: email,
		Role:  models.RoleUser,
	}
	err = us.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		name, email, string(hash), user.Role,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return user, nil
}

func (us *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return us.findOne(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE email = $1`, email)
}

func (us *UserService) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return us.findOne(ctx, `
		SELECT id, name, email, password_hash, role, created_at
		FROM users WHERE id = $1`, id)
}

func (us *UserService) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user := &models.User{}
	err := us.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return user, nil
}

// UserUpdate carries the optional profile fields for Update. Nil means
// "leave unchanged".
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
}

// Update applies a partial profile update. A new password is re-hashed;
// an email already registered to another user surfaces ErrEmailTaken.
func (us *UserService) Update(ctx context.Context, id int64, update UserUpdate) (*models.User, error) {
	var sets []string
	var args []any
	argIndex := 1

	if update.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", argIndex))
		args = append(args, *update.Name)
		argIndex++
	}
	if update.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", argIndex))
		args = append(args, *update.Email)
		argIndex++
	}
	if update.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		sets = append(sets, fmt.Sprintf("password_hash = $%d", argIndex))
		args = append(args, string(hash))
		argIndex++
	}
	if len(sets) == 0 {
		return us.FindByID(ctx, id)
	}

	query := fmt.Sprintf(`
		UPDATE users SET %s WHERE id = $%d
		RETURNING id, name, email, password_hash, role, created_at`,
		strings.Join(sets, ", "), argIndex)
	args = append(args, id)

	user := &models.User{}
	err := us.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("updating user: %w", err)
	}

	log.Printf("[USER] User %d profile updated", id)
	return user, nil
}

// CheckPassword compares a candidate password against the stored hash.
func (us *UserService) CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}
