package assets

import (
	"fmt"
	"strings"
)

// Metric category names. Each category maps to exactly one ClickHouse table
// and one source fallback chain.
const (
	CategoryTokenomics  = "tokenomics"
	CategoryMarket      = "market"
	CategoryFundraising = "fundraising"
	CategorySocial      = "social"
	CategoryFundDist    = "funddist"
	CategoryPriceBand   = "priceband"
	CategoryTrend       = "trend"
	CategoryHolders     = "holders"
	CategoryNetwork     = "network"
)

// Column kinds supported by metric tables. Every metric field is Nullable so
// that an absent fetch result never erases a previously stored value.
const (
	KindFloat64 = "Float64"
	KindInt64   = "Int64"
	KindString  = "String"
)

// ColumnDef defines a single metric column for a category table.
type ColumnDef struct {
	// Name is the column name.
	Name string

	// Kind is the base ClickHouse type (Float64, Int64 or String). Metric
	// columns are always created as Nullable(Kind).
	Kind string
}

// SQL returns the column definition for CREATE TABLE statements.
func (c ColumnDef) SQL() string {
	return fmt.Sprintf("%s Nullable(%s)", c.Name, c.Kind)
}

// TableSpec describes one metric category table: its columns and the
// required-field contract a fetch result must satisfy to be reconciled.
type TableSpec struct {
	Category string
	Table    string
	Columns  []ColumnDef
	Required []string
}

// Column returns the column definition by name, if present.
func (s TableSpec) Column(name string) (ColumnDef, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// ColumnNames returns all metric column names in declaration order.
func (s TableSpec) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	return names
}

// SchemaSQL returns the metric column block for CREATE TABLE statements.
func (s TableSpec) SchemaSQL() string {
	parts := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		parts = append(parts, c.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// Partial is the subset of a metric category's fields obtained from one
// fetch, keyed by column name. Values are float64, int64 or string.
type Partial map[string]any

// Clone returns a shallow copy; Partial values are scalars.
func (p Partial) Clone() Partial {
	out := make(Partial, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

var tableSpecs = []TableSpec{
	{
		Category: CategoryTokenomics,
		Table:    "metrics_tokenomics",
		Columns: []ColumnDef{
			{Name: "market_cap", Kind: KindFloat64},
			{Name: "fully_diluted_valuation", Kind: KindFloat64},
			{Name: "circulating_supply", Kind: KindFloat64},
			{Name: "total_supply", Kind: KindFloat64},
			{Name: "max_supply", Kind: KindFloat64},
		},
		Required: []string{"market_cap", "circulating_supply"},
	},
	{
		Category: CategoryMarket,
		Table:    "metrics_market",
		Columns: []ColumnDef{
			{Name: "price_usd", Kind: KindFloat64},
			{Name: "volume_24h", Kind: KindFloat64},
			{Name: "percent_change_24h", Kind: KindFloat64},
			{Name: "percent_change_7d", Kind: KindFloat64},
			{Name: "ath_usd", Kind: KindFloat64},
			{Name: "atl_usd", Kind: KindFloat64},
		},
		Required: []string{"price_usd", "volume_24h"},
	},
	{
		Category: CategoryFundraising,
		Table:    "metrics_fundraising",
		Columns: []ColumnDef{
			{Name: "total_raised_usd", Kind: KindFloat64},
			{Name: "last_round_usd", Kind: KindFloat64},
			{Name: "last_round_date", Kind: KindString},
			{Name: "investors", Kind: KindString},
			{Name: "investor_count", Kind: KindInt64},
		},
		Required: []string{"total_raised_usd", "investors"},
	},
	{
		Category: CategorySocial,
		Table:    "metrics_social",
		Columns: []ColumnDef{
			{Name: "twitter_followers", Kind: KindInt64},
			{Name: "telegram_members", Kind: KindInt64},
			{Name: "reddit_subscribers", Kind: KindInt64},
			{Name: "social_score", Kind: KindFloat64},
		},
		Required: []string{"social_score", "twitter_followers"},
	},
	{
		Category: CategoryFundDist,
		Table:    "metrics_funddist",
		Columns: []ColumnDef{
			{Name: "fund_holdings_pct", Kind: KindFloat64},
			{Name: "fund_count", Kind: KindInt64},
			{Name: "top_fund", Kind: KindString},
		},
		Required: []string{"fund_holdings_pct"},
	},
	{
		Category: CategoryPriceBand,
		Table:    "metrics_priceband",
		Columns: []ColumnDef{
			{Name: "high_90d", Kind: KindFloat64},
			{Name: "low_90d", Kind: KindFloat64},
			{Name: "band_position", Kind: KindFloat64},
		},
		Required: []string{"high_90d", "low_90d"},
	},
	{
		Category: CategoryTrend,
		Table:    "metrics_trend",
		Columns: []ColumnDef{
			{Name: "growth_30d", Kind: KindFloat64},
			{Name: "growth_60d", Kind: KindFloat64},
			{Name: "drawdown_from_ath", Kind: KindFloat64},
		},
		Required: []string{"growth_30d"},
	},
	{
		Category: CategoryHolders,
		Table:    "metrics_holders",
		Columns: []ColumnDef{
			{Name: "top10_share", Kind: KindFloat64},
			{Name: "top50_share", Kind: KindFloat64},
			{Name: "holder_count", Kind: KindInt64},
		},
		Required: []string{"top10_share", "holder_count"},
	},
	{
		Category: CategoryNetwork,
		Table:    "metrics_network",
		Columns: []ColumnDef{
			{Name: "tvl_usd", Kind: KindFloat64},
			{Name: "mcap_tvl_ratio", Kind: KindFloat64},
			{Name: "active_addresses", Kind: KindInt64},
			{Name: "daily_txns", Kind: KindInt64},
		},
		Required: []string{"tvl_usd"},
	},
}

// Specs returns the table specs for all nine metric categories.
func Specs() []TableSpec {
	return tableSpecs
}

// SpecFor returns the table spec for the given category.
func SpecFor(category string) (TableSpec, error) {
	for _, s := range tableSpecs {
		if s.Category == category {
			return s, nil
		}
	}
	return TableSpec{}, fmt.Errorf("unknown metric category: %s", category)
}

// Categories returns all category names in spec order.
func Categories() []string {
	out := make([]string, 0, len(tableSpecs))
	for _, s := range tableSpecs {
		out = append(out, s.Category)
	}
	return out
}
