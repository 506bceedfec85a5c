package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
	"gorm.io/gorm"
)

// DomainRepository defines the interface for registered masked-address domains
type DomainRepository interface {
	Create(ctx context.Context, domain *models.Domain) error
	GetByID(ctx context.Context, id uint) (*models.Domain, error)
	GetByName(ctx context.Context, name string) (*models.Domain, error)
	List(ctx context.Context, activeOnly bool) ([]models.Domain, error)
	Update(ctx context.Context, domain *models.Domain) error
	Delete(ctx context.Context, id uint) error
	// Accepts reports whether mail for the domain is received
	Accepts(ctx context.Context, name string) (bool, error)
	CountAddresses(ctx context.Context, id uint) (int64, error)
}

// domainRepository implements DomainRepository using GORM
type domainRepository struct {
	db *gorm.DB
}

// NewDomainRepository creates a new DomainRepository instance
func NewDomainRepository(db *gorm.DB) DomainRepository {
	return &domainRepository{db: db}
}

func normalizeDomain(name string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(name)), ".")
}

// Create creates a new domain
func (r *domainRepository) Create(ctx context.Context, domain *models.Domain) error {
	domain.Name = normalizeDomain(domain.Name)
	if domain.Name == "" {
		return fmt.Errorf("%w: empty domain name", ErrInvalidInput)
	}

	result := r.db.WithContext(ctx).Create(domain)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("domain with name '%s' already exists: %w", domain.Name, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create domain: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a domain by its ID
func (r *domainRepository) GetByID(ctx context.Context, id uint) (*models.Domain, error) {
	var domain models.Domain
	result := r.db.WithContext(ctx).First(&domain, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get domain by ID: %w", result.Error)
	}
	return &domain, nil
}

// GetByName retrieves a domain by its name, case-insensitively
func (r *domainRepository) GetByName(ctx context.Context, name string) (*models.Domain, error) {
	var domain models.Domain
	result := r.db.WithContext(ctx).Where("name = ?", normalizeDomain(name)).First(&domain)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get domain by name: %w", result.Error)
	}
	return &domain, nil
}

// List retrieves all domains ordered by name, optionally only active ones
func (r *domainRepository) List(ctx context.Context, activeOnly bool) ([]models.Domain, error) {
	var domains []models.Domain
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	if err := query.Order("name ASC").Find(&domains).Error; err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

// Update saves name and active flag of an existing domain
func (r *domainRepository) Update(ctx context.Context, domain *models.Domain) error {
	domain.Name = normalizeDomain(domain.Name)
	result := r.db.WithContext(ctx).Model(&models.Domain{}).Where("id = ?", domain.ID).
		Updates(map[string]any{"name": domain.Name, "is_active": domain.IsActive})
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return fmt.Errorf("domain with name '%s' already exists: %w", domain.Name, ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to update domain: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deletes a domain by its ID. Its addresses are kept and lose the association.
func (r *domainRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SQLite without foreign key enforcement does not apply ON DELETE SET NULL
		if err := tx.Model(&models.Address{}).Where("domain_id = ?", id).Update("domain_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach addresses: %w", err)
		}

		result := tx.Delete(&models.Domain{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete domain: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Accepts reports whether name is a registered, active domain
func (r *domainRepository) Accepts(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Domain{}).
		Where("name = ? AND is_active = ?", normalizeDomain(name), true).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check domain: %w", err)
	}
	return count > 0, nil
}

// CountAddresses returns the number of addresses associated with the domain
func (r *domainRepository) CountAddresses(ctx context.Context, id uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Address{}).Where("domain_id = ?", id).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count addresses: %w", err)
	}
	return count, nil
}
