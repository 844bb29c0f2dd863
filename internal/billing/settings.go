package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/atelier-crm/atelier-crm/internal/billing/numbering"
)

// DefaultCurrency is the single documented fallback used whenever company
// settings are absent. Every component formatting money in one response
// must use the same fallback.
const DefaultCurrency = "EUR"

// DefaultTaxRate is the fallback percentage applied to lines that carry no
// explicit rate when settings are absent.
const DefaultTaxRate = 20.0

// Settings is the per-owner configuration read by the engine. It is never
// inferred; absent values fall back to the documented defaults only.
type Settings struct {
	OwnerID        uuid.UUID `json:"-"`
	CompanyName    string    `json:"company_name"`
	Currency       string    `json:"currency"`
	QuotePattern   string    `json:"quote_pattern"`
	InvoicePattern string    `json:"invoice_pattern"`
	DefaultTaxRate float64   `json:"default_tax_rate"`
}

// CurrencyOrDefault returns the configured currency or the documented
// fallback.
func (s *Settings) CurrencyOrDefault() string {
	if s == nil || s.Currency == "" {
		return DefaultCurrency
	}
	return s.Currency
}

// TaxRateOrDefault returns the configured default tax rate or the fallback.
func (s *Settings) TaxRateOrDefault() float64 {
	if s == nil || s.DefaultTaxRate == 0 {
		return DefaultTaxRate
	}
	return s.DefaultTaxRate
}

// PatternFor returns the numbering pattern for a document type, falling
// back to the documented defaults.
func (s *Settings) PatternFor(docType string) string {
	switch docType {
	case DocTypeQuote:
		if s != nil && s.QuotePattern != "" {
			return s.QuotePattern
		}
		return numbering.DefaultQuotePattern
	case DocTypeInvoice:
		if s != nil && s.InvoicePattern != "" {
			return s.InvoicePattern
		}
		return numbering.DefaultInvoicePattern
	default:
		return ""
	}
}

// CurrencySymbol maps an ISO code to its display symbol, keeping the code
// itself for currencies without a dedicated symbol.
func CurrencySymbol(code string) string {
	switch code {
	case "EUR":
		return "€"
	case "USD":
		return "$"
	case "GBP":
		return "£"
	case "CHF":
		return "CHF"
	default:
		return code
	}
}

// SettingsSource reads per-owner settings. A nil result with a nil error
// means the owner has no settings row; callers use the documented fallbacks.
type SettingsSource interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*Settings, error)
}

// SettingsStore adds the write side.
type SettingsStore interface {
	SettingsSource
	Save(ctx context.Context, settings Settings) error
}

type pgSettingsStore struct {
	pool *pgxpool.Pool
}

// NewSettingsStore returns the PostgreSQL-backed settings store.
func NewSettingsStore(pool *pgxpool.Pool) SettingsStore {
	return &pgSettingsStore{pool: pool}
}

func (s *pgSettingsStore) Get(ctx context.Context, ownerID uuid.UUID) (*Settings, error) {
	var out Settings
	err := s.pool.QueryRow(ctx, `
		SELECT owner_id, company_name, currency, quote_pattern, invoice_pattern, default_tax_rate
		FROM company_settings
		WHERE owner_id = $1
	`, ownerID).Scan(&out.OwnerID, &out.CompanyName, &out.Currency, &out.QuotePattern, &out.InvoicePattern, &out.DefaultTaxRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("billing: get settings: %w", err)
	}
	return &out, nil
}

func (s *pgSettingsStore) Save(ctx context.Context, settings Settings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO company_settings (owner_id, company_name, currency, quote_pattern, invoice_pattern, default_tax_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			currency = EXCLUDED.currency,
			quote_pattern = EXCLUDED.quote_pattern,
			invoice_pattern = EXCLUDED.invoice_pattern,
			default_tax_rate = EXCLUDED.default_tax_rate
	`, settings.OwnerID, settings.CompanyName, settings.Currency,
		settings.QuotePattern, settings.InvoicePattern, settings.DefaultTaxRate)
	if err != nil {
		return fmt.Errorf("billing: save settings: %w", err)
	}
	return nil
}

// CachedSettings is a read-through Redis cache in front of a settings store.
// Saves write through and drop the cached entry.
type CachedSettings struct {
	store SettingsStore
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedSettings wraps a store with a Redis cache.
func NewCachedSettings(store SettingsStore, client *redis.Client, ttl time.Duration) *CachedSettings {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSettings{store: store, redis: client, ttl: ttl}
}

func settingsKey(ownerID uuid.UUID) string {
	return "settings:" + ownerID.String()
}

// Get returns cached settings when present, reading through on a miss.
// Cache failures degrade to the underlying store.
func (c *CachedSettings) Get(ctx context.Context, ownerID uuid.UUID) (*Settings, error) {
	if c.redis != nil {
		raw, err := c.redis.Get(ctx, settingsKey(ownerID)).Bytes()
		if err == nil {
			var cached Settings
			if err := json.Unmarshal(raw, &cached); err == nil {
				cached.OwnerID = ownerID
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("billing: settings cache: %w", err)
		}
	}

	settings, err := c.store.Get(ctx, ownerID)
	if err != nil || settings == nil {
		return settings, err
	}
	if c.redis != nil {
		if raw, err := json.Marshal(settings); err == nil {
			_ = c.redis.Set(ctx, settingsKey(ownerID), raw, c.ttl).Err()
		}
	}
	return settings, nil
}

// Save writes through and invalidates the cached entry.
func (c *CachedSettings) Save(ctx context.Context, settings Settings) error {
	if err := c.store.Save(ctx, settings); err != nil {
		return err
	}
	if c.redis != nil {
		_ = c.redis.Del(ctx, settingsKey(settings.OwnerID)).Err()
	}
	return nil
}

var _ SettingsStore = (*CachedSettings)(nil)
