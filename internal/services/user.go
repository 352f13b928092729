package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/oakmall/storefront/internal/apperr"
	"github.com/oakmall/storefront/internal/db"
	"github.com/oakmall/storefront/internal/metrics"
	"github.com/oakmall/storefront/internal/models"
)

// UserService handles the user directory.
type UserService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewUserService creates a new user service
func NewUserService(db *db.DB, metrics *metrics.AppMetrics) *UserService {
	return &UserService{db: db, metrics: metrics}
}

// CreateUser registers a user. Email is unique; registering an existing
// email returns the existing account.
func (s *UserService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	if req.Email == "" || req.Name == "" {
		return nil, apperr.BadRequest("user email and name are required")
	}

	start := time.Now()
	query := "INSERT INTO users (email, name) VALUES (?, ?)"
	result, err := s.db.ExecContext(ctx, query, req.Email, req.Name)
	s.metrics.RecordDBQuery(ctx, "INSERT", "users", query, start, err == nil)
	if err != nil {
		if isDuplicateKey(err) {
			return s.GetUserByEmail(ctx, req.Email)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	log.Printf("[USER] User created: user_id=%d", id)

	return &models.User{
		ID:        id,
		Email:     req.Email,
		Name:      req.Name,
		CreatedAt: time.Now(),
	}, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()
	query := "SELECT id, email, name, created_at FROM users WHERE id = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user not found with id: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetUserByEmail returns a user by email
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	start := time.Now()
	query := "SELECT id, email, name, created_at FROM users WHERE email = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("user not found with email: %s", email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ExistsByEmail reports whether a user with the email exists.
func (s *UserService) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	start := time.Now()
	query := "SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)"
	var exists bool
	err := s.db.QueryRowContext(ctx, query, email).Scan(&exists)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}
