package refdata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Loader reads the tenant reference tables from the application
// database. The market approach map is shared across tenants and lives
// in the common schema.
type Loader struct {
	db     *sql.DB
	logger *log.Logger
}

func OpenLoader(dsn string, logger *log.Logger) (*Loader, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("refdata: open: %w", err)
	}
	return NewLoaderFromDB(db, logger), nil
}

func NewLoaderFromDB(db *sql.DB, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{db: db, logger: logger}
}

func (l *Loader) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Load materialises the complete reference set for one tenant.
func (l *Loader) Load(ctx context.Context, tenant string) (*Data, error) {
	d := &Data{}
	if err := l.loadReferences(ctx, tenant, d); err != nil {
		return nil, err
	}
	if err := l.loadStrategy(ctx, tenant, d); err != nil {
		return nil, err
	}
	if err := l.loadTones(ctx, tenant, d); err != nil {
		return nil, err
	}
	if err := l.loadMarketMap(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (l *Loader) loadReferences(ctx context.Context, tenant string, d *Data) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT type, title, parameter, value, description
		 FROM negotiation_references WHERE tenant_id = $1`, tenant)
	if err != nil {
		return fmt.Errorf("refdata: references: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.Type, &r.Title, &r.Parameter, &r.Value, &r.Description); err != nil {
			return fmt.Errorf("refdata: references: %w", err)
		}
		d.References = append(d.References, r)
	}
	return rows.Err()
}

func (l *Loader) loadStrategy(ctx context.Context, tenant string, d *Data) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT category, pricing_methodology, contracting_methodology, auction_potential, market_complexity
		 FROM negotiation_strategy WHERE tenant_id = $1`, tenant)
	if err != nil {
		return fmt.Errorf("refdata: strategy: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r                  StrategyRow
			pricing, contracts []byte
		)
		if err := rows.Scan(&r.Category, &pricing, &contracts, &r.AuctionPotential, &r.MarketComplexity); err != nil {
			return fmt.Errorf("refdata: strategy: %w", err)
		}
		r.PricingMethodology = decodeList(pricing, l.logger, "pricing_methodology")
		r.ContractingMethodology = decodeList(contracts, l.logger, "contracting_methodology")
		d.Strategy = append(d.Strategy, r)
	}
	return rows.Err()
}

func (l *Loader) loadTones(ctx context.Context, tenant string, d *Data) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT supplier_positioning, buyer_positioning, title, description, prioritize, tactics
		 FROM negotiation_strategy_tones_n_tactics WHERE tenant_id = $1`, tenant)
	if err != nil {
		return fmt.Errorf("refdata: tones: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r                   ToneRow
			prioritize, tactics []byte
		)
		if err := rows.Scan(&r.SupplierPositioning, &r.BuyerPositioning, &r.Title, &r.Description, &prioritize, &tactics); err != nil {
			return fmt.Errorf("refdata: tones: %w", err)
		}
		if len(prioritize) > 0 {
			if err := json.Unmarshal(prioritize, &r.Prioritize); err != nil {
				l.logger.Printf("refdata: tone %q prioritize: %v", r.Title, err)
			}
		}
		if len(tactics) > 0 {
			if err := json.Unmarshal(tactics, &r.Tactics); err != nil {
				l.logger.Printf("refdata: tone %q tactics: %v", r.Title, err)
			}
		}
		d.Tones = append(d.Tones, r)
	}
	return rows.Err()
}

func (l *Loader) loadMarketMap(ctx context.Context, d *Data) error {
	rows, err := l.db.QueryContext(ctx,
		`SELECT market_approach, details, incumbency, category_positioning, supplier_relationship, auction_potential
		 FROM common.negotiation_market_approach`)
	if err != nil {
		return fmt.Errorf("refdata: market approach: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			r               MarketOption
			catPos, suppRel []byte
		)
		if err := rows.Scan(&r.MarketApproach, &r.Details, &r.Incumbency, &catPos, &suppRel, &r.AuctionPotential); err != nil {
			return fmt.Errorf("refdata: market approach: %w", err)
		}
		r.CategoryPositioning = decodeList(catPos, l.logger, "category_positioning")
		r.SupplierRelationship = decodeList(suppRel, l.logger, "supplier_relationship")
		d.MarketMap = append(d.MarketMap, r)
	}
	return rows.Err()
}

func decodeList(raw []byte, logger *log.Logger, field string) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		logger.Printf("refdata: %s: %v", field, err)
		return nil
	}
	return out
}
