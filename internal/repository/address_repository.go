package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AddressRepository defines the interface for the address registry
type AddressRepository interface {
	Resolve(ctx context.Context, email string) (*models.Address, error)
	IsBlocked(ctx context.Context, email string) (bool, error)
	SetBlocked(ctx context.Context, id uint, blocked bool) (*models.Address, error)
	GetByID(ctx context.Context, id uint) (*models.Address, error)
	GetByEmail(ctx context.Context, email string) (*models.Address, error)
	List(ctx context.Context, blockedOnly bool, limit, offset int) ([]models.Address, int64, error)
}

// addressRepository implements AddressRepository using GORM
type addressRepository struct {
	db *gorm.DB
}

// NewAddressRepository creates a new AddressRepository instance
func NewAddressRepository(db *gorm.DB) AddressRepository {
	return &addressRepository{db: db}
}

// Resolve returns the address record for email, creating an unblocked one on
// first sighting. Creation is an INSERT ... ON CONFLICT DO NOTHING followed by
// a read, so concurrent first contacts for the same email converge on one row.
func (r *addressRepository) Resolve(ctx context.Context, email string) (*models.Address, error) {
	email = models.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}

	address, err := r.GetByEmail(ctx, email)
	if err == nil {
		return address, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	address = &models.Address{
		Email:    email,
		DomainID: r.domainIDFor(ctx, email),
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(address)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create address: %w", result.Error)
	}

	// Another request created it between our read and insert
	if result.RowsAffected == 0 {
		return r.GetByEmail(ctx, email)
	}

	return address, nil
}

// domainIDFor returns the ID of the registered domain matching the email's
// domain part, or nil when there is none
func (r *addressRepository) domainIDFor(ctx context.Context, email string) *uint {
	var domain models.Domain
	result := r.db.WithContext(ctx).Where("name = ?", models.DomainPart(email)).Limit(1).Find(&domain)
	if result.Error != nil || result.RowsAffected == 0 {
		return nil
	}
	return &domain.ID
}

// IsBlocked reports whether the address is blocked. Unknown addresses are not.
func (r *addressRepository) IsBlocked(ctx context.Context, email string) (bool, error) {
	address, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return address.IsBlocked, nil
}

// SetBlocked blocks or unblocks an address and returns the updated record
func (r *addressRepository) SetBlocked(ctx context.Context, id uint, blocked bool) (*models.Address, error) {
	result := r.db.WithContext(ctx).Model(&models.Address{}).Where("id = ?", id).Update("is_blocked", blocked)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update address: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// GetByID retrieves an address by its ID
func (r *addressRepository) GetByID(ctx context.Context, id uint) (*models.Address, error) {
	var address models.Address
	result := r.db.WithContext(ctx).Preload("Domain").First(&address, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get address by ID: %w", result.Error)
	}
	return &address, nil
}

// GetByEmail retrieves an address by its normalized email
func (r *addressRepository) GetByEmail(ctx context.Context, email string) (*models.Address, error) {
	var address models.Address
	result := r.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&address)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get address by email: %w", result.Error)
	}
	return &address, nil
}

// List retrieves addresses with pagination, newest first
func (r *addressRepository) List(ctx context.Context, blockedOnly bool, limit, offset int) ([]models.Address, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if blockedOnly {
			return db.Where("is_blocked = ?", true)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Address{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count addresses: %w", err)
	}

	var addresses []models.Address
	result := r.db.WithContext(ctx).Scopes(scope).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&addresses)
	if result.Error != nil {
		return nil, 0, fmt.Errorf("failed to list addresses: %w", result.Error)
	}

	return addresses, total, nil
}
