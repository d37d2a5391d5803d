package store

// Config holds configuration for the identity stores. It generalizes the
// teacher's store.Config (RelationshipTable/UniqueTable/NumShards) to this
// domain's knobs: table names, the scan/allowlist gate, and the planner's
// operational ceilings.
type Config struct {
	// AccountsTable is the DynamoDB table backing AccountStore.
	// Default: "curity-accounts"
	AccountsTable string

	// LinksTable is the DynamoDB table backing LinkStore.
	// Default: "curity-links"
	LinksTable string

	// DelegationsTable is the DynamoDB table backing DelegationStore.
	// Default: "curity-delegations"
	DelegationsTable string

	// AllowTableScans gates getAll/planner fallbacks that would otherwise
	// require a full Scan. Spec §9 Note 5 resolves the two observed DAP
	// variants' disagreement in favor of gating.
	AllowTableScans bool

	// MaxQueries is the planner's MAX_QUERIES ceiling (spec §4.4 step 6).
	// Default: 8
	MaxQueries int

	// RetryAttempts bounds RetryLoop invocations around optimistic-
	// concurrency writes (spec §4.9).
	// Default: 3
	RetryAttempts int
}

// DefaultConfig returns sensible defaults matching the tables named in
// spec §6.
func DefaultConfig() Config {
	return Config{
		AccountsTable:    "curity-accounts",
		LinksTable:       "curity-links",
		DelegationsTable: "curity-delegations",
		AllowTableScans:  false,
		MaxQueries:       8,
		RetryAttempts:    3,
	}
}

// validate fills in defaults for any unset fields, mirroring the teacher's
// Config.validate clamping pattern.
func (c *Config) validate() {
	if c.AccountsTable == "" {
		c.AccountsTable = "curity-accounts"
	}
	if c.LinksTable == "" {
		c.LinksTable = "curity-links"
	}
	if c.DelegationsTable == "" {
		c.DelegationsTable = "curity-delegations"
	}
	if c.MaxQueries < 1 {
		c.MaxQueries = 8
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 3
	}
}
