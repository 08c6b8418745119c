package pricing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/labdesk/internal/config"
	"go.uber.org/fx"
)

// Table maps a work type to its default amount. It is static
// configuration: the admin price list of the lab, not per-client pricing.
type Table struct {
	prices map[string]decimal.Decimal
}

// defaultCatalog is the built-in price list, used when no override is
// configured.
var defaultCatalog = map[string]string{
	"corona_metal_porcelana": "1850.00",
	"corona_zirconia":        "2750.00",
	"corona_emax":            "2900.00",
	"incrustacion":           "1200.00",
	"carilla":                "2400.00",
	"puente_3_unidades":      "5100.00",
	"protesis_parcial":       "3600.00",
	"protesis_total":         "6800.00",
	"guarda_oclusal":         "950.00",
	"modelo_estudio":         "250.00",
}

// New builds the price table from configuration, falling back to the
// built-in catalog.
func New(cfg config.Config) (*Table, error) {
	source := defaultCatalog
	if raw := strings.TrimSpace(cfg.PriceTableJSON); raw != "" {
		source = map[string]string{}
		if err := json.Unmarshal([]byte(raw), &source); err != nil {
			return nil, fmt.Errorf("parse PRICE_TABLE_JSON: %w", err)
		}
	}

	prices := make(map[string]decimal.Decimal, len(source))
	for workType, amount := range source {
		workType = strings.ToLower(strings.TrimSpace(workType))
		if workType == "" {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("price for %q: %w", workType, err)
		}
		prices[workType] = value
	}
	return &Table{prices: prices}, nil
}

// Lookup returns the default amount for a work type. The boolean is false
// when the type is not priced.
func (t *Table) Lookup(workType string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	price, ok := t.prices[strings.ToLower(strings.TrimSpace(workType))]
	return price, ok
}

var Module = fx.Module("pricing",
	fx.Provide(New),
)
