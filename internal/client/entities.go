package client

// EntityKind identifies one of the seven seeded entity types.
type EntityKind string

const (
	KindOrganization EntityKind = "organization"
	KindLedger       EntityKind = "ledger"
	KindAsset        EntityKind = "asset"
	KindPortfolio    EntityKind = "portfolio"
	KindSegment      EntityKind = "segment"
	KindAccount      EntityKind = "account"
	KindTransaction  EntityKind = "transaction"
)

// Kinds returns all entity kinds in dependency order (parents first).
func Kinds() []EntityKind {
	return []EntityKind{
		KindOrganization,
		KindLedger,
		KindAsset,
		KindPortfolio,
		KindSegment,
		KindAccount,
		KindTransaction,
	}
}

// Parent returns the kind an entity of this kind is created under.
// Organizations are top-level and have no parent.
func (k EntityKind) Parent() EntityKind {
	switch k {
	case KindOrganization:
		return ""
	case KindLedger:
		return KindOrganization
	default:
		return KindLedger
	}
}

// EntityRef is the platform's handle for a created entity. Only the fields
// needed for dependency wiring and conflict lookup are decoded.
type EntityRef struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Code  string `json:"code,omitempty"`
	Alias string `json:"alias,omitempty"`
}

// Status is the lifecycle status attached to most entities.
type Status struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// Address is a postal address on an organization.
type Address struct {
	Line1   string `json:"line1"`
	ZipCode string `json:"zipCode"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Organization is the top-level tenant entity.
type Organization struct {
	LegalName       string  `json:"legalName"`
	DoingBusinessAs string  `json:"doingBusinessAs"`
	LegalDocument   string  `json:"legalDocument"`
	Status          Status  `json:"status"`
	Address         Address `json:"address"`
}

// Ledger is a book of accounts under an organization.
type Ledger struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Asset is a currency, commodity, or crypto definition scoped to a ledger.
type Asset struct {
	Name   string `json:"name"`
	Type   string `json:"type"` // currency, commodity, crypto
	Code   string `json:"code"`
	Status Status `json:"status"`
}

// Portfolio groups accounts for an external entity.
type Portfolio struct {
	Name     string `json:"name"`
	EntityID string `json:"entityId"`
	Status   Status `json:"status"`
}

// Segment partitions accounts for reporting.
type Segment struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Account holds balances in a single asset within a ledger.
type Account struct {
	Name      string `json:"name"`
	Alias     string `json:"alias"`
	Type      string `json:"type"` // deposit, savings, creditCard, expense
	AssetCode string `json:"assetCode"`
	Status    Status `json:"status"`
}

// Amount is an integer value at a decimal scale in a given asset.
type Amount struct {
	Asset string `json:"asset"`
	Value int64  `json:"value"`
	Scale int    `json:"scale"`
}

// Operation is one leg of a transaction.
type Operation struct {
	AccountID string `json:"accountId"`
	Amount    Amount `json:"amount"`
}

// Transaction moves value between at least two accounts in the same ledger.
type Transaction struct {
	Description    string      `json:"description"`
	AssetCode      string      `json:"assetCode"`
	Amount         int64       `json:"amount"`
	Scale          int         `json:"scale"`
	Sources        []Operation `json:"sources"`
	Destinations   []Operation `json:"destinations"`
	IdempotencyKey string      `json:"idempotencyKey,omitempty"`
}
