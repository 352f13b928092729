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

// AddressService manages a user's address book. Per user, at most one
// address carries the shipping default and at most one the billing
// default; every default handoff happens inside a single transaction.
type AddressService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewAddressService creates a new address service
func NewAddressService(db *db.DB, metrics *metrics.AppMetrics) *AddressService {
	return &AddressService{db: db, metrics: metrics}
}

const addressColumns = `SELECT id, user_id, title, full_name, phone_number, address_line,
		city, state, country, postal_code, default_shipping, default_billing, created_at, updated_at`

// Create adds an address. The user's first address becomes both defaults
// regardless of the request flags; later addresses take a default only
// when asked, displacing the previous holder in the same transaction.
func (s *AddressService) Create(ctx context.Context, userID int64, req models.AddressRequest) (*models.Address, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	countQuery := "SELECT COUNT(*) FROM addresses WHERE user_id = ? FOR UPDATE"
	var count int
	err = tx.QueryRowContext(ctx, countQuery, userID).Scan(&count)
	s.metrics.RecordDBQuery(ctx, "SELECT", "addresses", countQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count addresses: %w", err)
	}

	defaultShipping := req.DefaultShipping
	defaultBilling := req.DefaultBilling
	if count == 0 {
		defaultShipping = true
		defaultBilling = true
	}

	if defaultShipping {
		if err := s.clearDefault(ctx, tx, userID, "default_shipping"); err != nil {
			return nil, err
		}
	}
	if defaultBilling {
		if err := s.clearDefault(ctx, tx, userID, "default_billing"); err != nil {
			return nil, err
		}
	}

	start = time.Now()
	insertQuery := `
		INSERT INTO addresses (user_id, title, full_name, phone_number, address_line,
			city, state, country, postal_code, default_shipping, default_billing)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := tx.ExecContext(ctx, insertQuery, userID, req.Title, req.FullName, req.PhoneNumber,
		req.AddressLine, req.City, req.State, req.Country, req.PostalCode, defaultShipping, defaultBilling)
	s.metrics.RecordDBQuery(ctx, "INSERT", "addresses", insertQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create address: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get address ID: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[ADDRESS] Address created: address_id=%d, user_id=%d", id, userID)

	return s.GetAddress(ctx, userID, id)
}

// Update rewrites the address fields. A default flag set in the request
// promotes the address, displacing the previous holder in the same
// transaction; a false flag leaves the current defaults alone.
func (s *AddressService) Update(ctx context.Context, userID, addressID int64, req models.AddressRequest) (*models.Address, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockOwnedAddress(ctx, tx, userID, addressID); err != nil {
		return nil, err
	}

	start := time.Now()
	query := `
		UPDATE addresses
		SET title = ?, full_name = ?, phone_number = ?, address_line = ?,
			city = ?, state = ?, country = ?, postal_code = ?, updated_at = NOW()
		WHERE id = ? AND user_id = ?
	`
	_, err = tx.ExecContext(ctx, query, req.Title, req.FullName, req.PhoneNumber, req.AddressLine,
		req.City, req.State, req.Country, req.PostalCode, addressID, userID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "addresses", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update address: %w", err)
	}

	if req.DefaultShipping {
		if err := s.promoteDefault(ctx, tx, userID, addressID, "default_shipping"); err != nil {
			return nil, err
		}
	}
	if req.DefaultBilling {
		if err := s.promoteDefault(ctx, tx, userID, addressID, "default_billing"); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.GetAddress(ctx, userID, addressID)
}

// SetDefaultShipping makes the address the user's shipping default,
// clearing the previous holder in the same transaction.
func (s *AddressService) SetDefaultShipping(ctx context.Context, userID, addressID int64) error {
	return s.setDefault(ctx, userID, addressID, "default_shipping")
}

// SetDefaultBilling makes the address the user's billing default,
// clearing the previous holder in the same transaction.
func (s *AddressService) SetDefaultBilling(ctx context.Context, userID, addressID int64) error {
	return s.setDefault(ctx, userID, addressID, "default_billing")
}

func (s *AddressService) setDefault(ctx context.Context, userID, addressID int64, column string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.lockOwnedAddress(ctx, tx, userID, addressID); err != nil {
		return err
	}

	if err := s.promoteDefault(ctx, tx, userID, addressID, column); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// promoteDefault clears the previous holder of column and sets it on the
// given address, inside the caller's transaction.
func (s *AddressService) promoteDefault(ctx context.Context, tx *sql.Tx, userID, addressID int64, column string) error {
	if err := s.clearDefault(ctx, tx, userID, column); err != nil {
		return err
	}

	start := time.Now()
	query := fmt.Sprintf("UPDATE addresses SET %s = TRUE, updated_at = NOW() WHERE id = ? AND user_id = ?", column)
	_, err := tx.ExecContext(ctx, query, addressID, userID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "addresses", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	return nil
}

// Delete removes an address. A user's sole address cannot be deleted
// while it still holds a default flag; once more addresses exist, any
// of them may be removed.
func (s *AddressService) Delete(ctx context.Context, userID, addressID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	query := "SELECT default_shipping, default_billing FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE"
	var defaultShipping, defaultBilling bool
	err = tx.QueryRowContext(ctx, query, addressID, userID).Scan(&defaultShipping, &defaultBilling)
	s.metrics.RecordDBQuery(ctx, "SELECT", "addresses", query, start, err == nil || err == sql.ErrNoRows)
	if err == sql.ErrNoRows {
		return apperr.NotFound("address not found with id: %d", addressID)
	}
	if err != nil {
		return fmt.Errorf("failed to get address: %w", err)
	}

	if defaultShipping || defaultBilling {
		start = time.Now()
		countQuery := "SELECT COUNT(*) FROM addresses WHERE user_id = ?"
		var count int
		err = tx.QueryRowContext(ctx, countQuery, userID).Scan(&count)
		s.metrics.RecordDBQuery(ctx, "SELECT", "addresses", countQuery, start, err == nil)
		if err != nil {
			return fmt.Errorf("failed to count addresses: %w", err)
		}
		if count == 1 {
			return apperr.BadRequest("cannot delete the only address when it is set as default")
		}
	}

	start = time.Now()
	deleteQuery := "DELETE FROM addresses WHERE id = ? AND user_id = ?"
	_, err = tx.ExecContext(ctx, deleteQuery, addressID, userID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "addresses", deleteQuery, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("[ADDRESS] Address deleted: address_id=%d, user_id=%d", addressID, userID)
	return nil
}

// GetAddress returns one of the user's addresses.
func (s *AddressService) GetAddress(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	start := time.Now()
	query := addressColumns + " FROM addresses WHERE id = ? AND user_id = ?"
	address, err := s.scanAddressRow(s.db.QueryRowContext(ctx, query, addressID, userID))
	s.metrics.RecordDBQuery(ctx, "SELECT", "addresses", query, start, err == nil || err == sql.ErrNoRows)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("address not found with id: %d", addressID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return address, nil
}

// GetUserAddresses returns all of the user's addresses, defaults first.
func (s *AddressService) GetUserAddresses(ctx context.Context, userID int64) ([]models.Address, error) {
	start := time.Now()
	query := addressColumns + ` FROM addresses WHERE user_id = ?
		ORDER BY default_shipping DESC, default_billing DESC, created_at`
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "addresses", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []models.Address
	for rows.Next() {
		var address models.Address
		if err := rows.Scan(
			&address.ID, &address.UserID, &address.Title, &address.FullName, &address.PhoneNumber,
			&address.AddressLine, &address.City, &address.State, &address.Country, &address.PostalCode,
			&address.DefaultShipping, &address.DefaultBilling, &address.CreatedAt, &address.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, address)
	}
	return addresses, rows.Err()
}

// GetDefaultShipping returns the user's default shipping address.
func (s *AddressService) GetDefaultShipping(ctx context.Context, userID int64) (*models.Address, error) {
	return s.getDefault(ctx, userID, "default_shipping", "shipping")
}

// GetDefaultBilling returns the user's default billing address.
func (s *AddressService) GetDefaultBilling(ctx context.Context, userID int64) (*models.Address, error) {
	return s.getDefault(ctx, userID, "default_billing", "billing")
}

func (s *AddressService) getDefault(ctx context.Context, userID int64, column, label string) (*models.Address, error) {
	start := time.Now()
	query := fmt.Sprintf("%s FROM addresses WHERE user_id = ? AND %s = TRUE", addressColumns, column)
	address, err := s.scanAddressRow(s.db.QueryRowContext(ctx, query, userID))
	s.metrics.RecordDBQuery(ctx, "SELECT", "addresses", query, start, err == nil || err == sql.ErrNoRows)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("no default %s address for user: %d", label, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default %s address: %w", label, err)
	}
	return address, nil
}

func (s *AddressService) scanAddressRow(row *sql.Row) (*models.Address, error) {
	var address models.Address
	err := row.Scan(
		&address.ID, &address.UserID, &address.Title, &address.FullName, &address.PhoneNumber,
		&address.AddressLine, &address.City, &address.State, &address.Country, &address.PostalCode,
		&address.DefaultShipping, &address.DefaultBilling, &address.CreatedAt, &address.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &address, nil
}

func (s *AddressService) lockOwnedAddress(ctx context.Context, tx *sql.Tx, userID, addressID int64) error {
	start := time.Now()
	query := "SELECT id FROM addresses WHERE id = ? AND user_id = ? FOR UPDATE"
	var id int64
	err := tx.QueryRowContext(ctx, query, addressID, userID).Scan(&id)
	s.metrics.RecordDBQuery(ctx, "SELECT", "addresses", query, start, err == nil || err == sql.ErrNoRows)
	if err == sql.ErrNoRows {
		return apperr.NotFound("address not found with id: %d", addressID)
	}
	if err != nil {
		return fmt.Errorf("failed to get address: %w", err)
	}
	return nil
}

func (s *AddressService) clearDefault(ctx context.Context, tx *sql.Tx, userID int64, column string) error {
	start := time.Now()
	query := fmt.Sprintf("UPDATE addresses SET %s = FALSE, updated_at = NOW() WHERE user_id = ? AND %s = TRUE", column, column)
	_, err := tx.ExecContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "addresses", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to clear %s: %w", column, err)
	}
	return nil
}
