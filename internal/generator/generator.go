// Package generator builds plausible entity payloads for the seeded
// platform. Generation is pure data shaping: no I/O, no knowledge of the
// remote API beyond the payload types.
package generator

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ledgerseed/internal/client"
)

// Generator produces entity payloads from a seeded random source.
// A fixed seed yields a reproducible dataset.
type Generator struct {
	// mu serializes rng access; batches call into the generator from
	// multiple workers and rand.Rand is not goroutine-safe.
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a generator. Seed 0 falls back to the current time.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Organization builds a top-level tenant payload.
func (g *Generator) Organization(index int) *client.Organization {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := fmt.Sprintf("%s %s %s",
		pick(g.rng, companyDescriptors),
		pick(g.rng, companyIndustries),
		pick(g.rng, companySuffixes))
	return &client.Organization{
		LegalName:       fmt.Sprintf("%s %03d", name, index+1),
		DoingBusinessAs: name,
		LegalDocument:   g.legalDocument(),
		Status:          active(),
		Address: client.Address{
			Line1:   fmt.Sprintf("%d Market Street", 100+g.rng.Intn(9900)),
			ZipCode: fmt.Sprintf("%05d", g.rng.Intn(100000)),
			City:    "San Francisco",
			State:   "CA",
			Country: "US",
		},
	}
}

// Ledger builds a ledger payload. The index keeps names unique within an
// organization.
func (g *Generator) Ledger(index int) *client.Ledger {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &client.Ledger{
		Name:   fmt.Sprintf("%s Ledger %d", pick(g.rng, ledgerPurposes), index+1),
		Status: active(),
	}
}

// Asset builds an asset payload. Indexes walk the fiat list first, then
// crypto, then synthetic codes, so codes never collide within a ledger.
func (g *Generator) Asset(index int) *client.Asset {
	switch {
	case index < len(currencyAssets):
		a := currencyAssets[index]
		return &client.Asset{Name: a.name, Type: "currency", Code: a.code, Status: active()}
	case index < len(currencyAssets)+len(cryptoAssets):
		a := cryptoAssets[index-len(currencyAssets)]
		return &client.Asset{Name: a.name, Type: "crypto", Code: a.code, Status: active()}
	default:
		n := index - len(currencyAssets) - len(cryptoAssets)
		return &client.Asset{
			Name:   fmt.Sprintf("Synthetic Asset %d", n+1),
			Type:   "commodity",
			Code:   fmt.Sprintf("SYN%02d", n+1),
			Status: active(),
		}
	}
}

// Portfolio builds a portfolio payload.
func (g *Generator) Portfolio(index int) *client.Portfolio {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &client.Portfolio{
		Name:     fmt.Sprintf("%s Portfolio %d", pick(g.rng, portfolioThemes), index+1),
		EntityID: uuid.NewString(),
		Status:   active(),
	}
}

// Segment builds a segment payload.
func (g *Generator) Segment(index int) *client.Segment {
	g.mu.Lock()
	defer g.mu.Unlock()

	return &client.Segment{
		Name:   fmt.Sprintf("%s Segment %d", pick(g.rng, segmentRegions), index+1),
		Status: active(),
	}
}

// Account builds an account payload holding the given asset. The alias is
// unique per ledger because the index is.
func (g *Generator) Account(index int, assetCode string) *client.Account {
	g.mu.Lock()
	defer g.mu.Unlock()

	first := pick(g.rng, accountHolderFirstNames)
	last := pick(g.rng, accountHolderSurnames)
	types := []string{"deposit", "savings", "creditCard", "expense"}
	return &client.Account{
		Name:      fmt.Sprintf("%s %s", first, last),
		Alias:     fmt.Sprintf("@%s_%s_%04d", strings.ToLower(first), strings.ToLower(last), index+1),
		Type:      types[g.rng.Intn(len(types))],
		AssetCode: assetCode,
		Status:    active(),
	}
}

// Transaction builds a two-legged transfer between source and destination
// accounts in the given asset. Source and destination legs carry the same
// amount, so the transaction always balances.
func (g *Generator) Transaction(assetCode, sourceAccountID, destAccountID string) *client.Transaction {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Cents in [1.00, 500.00).
	value := int64(100 + g.rng.Intn(49900))
	amount := client.Amount{Asset: assetCode, Value: value, Scale: 2}
	return &client.Transaction{
		Description:    pick(g.rng, transactionMemos),
		AssetCode:      assetCode,
		Amount:         value,
		Scale:          2,
		Sources:        []client.Operation{{AccountID: sourceAccountID, Amount: amount}},
		Destinations:   []client.Operation{{AccountID: destAccountID, Amount: amount}},
		IdempotencyKey: uuid.NewString(),
	}
}

// legalDocument returns a random CNPJ-shaped document number.
func (g *Generator) legalDocument() string {
	return fmt.Sprintf("%08d000%d%02d", g.rng.Intn(100000000), 1+g.rng.Intn(9), g.rng.Intn(100))
}

func active() client.Status {
	return client.Status{Code: "ACTIVE"}
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.Intn(len(options))]
}
