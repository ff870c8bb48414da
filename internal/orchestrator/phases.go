package orchestrator

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ledgerseed/internal/client"
)

// generateOrganizations tops the organization set up to the configured
// count. On a fresh run that means creating all of them; on resume, only
// the missing tail. Conflicts recover by name lookup, so rerunning against
// a pre-seeded platform reuses existing organizations.
func (o *Orchestrator) generateOrganizations(ctx context.Context) error {
	have := len(o.state.OrganizationIDs())
	need := o.cfg.Counts.Organizations - have
	if need <= 0 {
		return nil
	}
	o.logger.Info("generating organizations", zap.Int("count", need), zap.Int("existing", have))

	failed, err := runBatch(ctx, o.cfg.Concurrency.Organizations, need, func(ctx context.Context, i int) error {
		org := o.gen.Organization(have + i)
		outcome, err := o.ensureCreated(ctx, client.KindOrganization,
			func(ctx context.Context) (client.EntityRef, error) {
				return o.api.CreateOrganization(ctx, org)
			},
			func(ctx context.Context) (client.EntityRef, error) {
				refs, err := o.api.ListOrganizations(ctx)
				if err != nil {
					return client.EntityRef{}, err
				}
				return findRef(refs, org.LegalName, func(r client.EntityRef) string { return r.Name })
			})
		if err != nil {
			o.state.TrackGenerationError(client.KindOrganization, "", err, org.LegalName)
			return err
		}
		if outcome.Ref.ID != "" {
			o.state.AddOrganizationID(outcome.Ref.ID)
		}
		return nil
	})
	if failed > 0 {
		o.logger.Warn("some organizations failed", zap.Int("failed", failed))
	}
	return err
}

// generateLedgers tops an organization's ledger set up to the configured
// count.
func (o *Orchestrator) generateLedgers(ctx context.Context, orgID string) error {
	have := len(o.state.IDs(client.KindLedger, orgID))
	need := o.cfg.Counts.LedgersPerOrganization - have
	if need <= 0 {
		return nil
	}

	_, err := runBatch(ctx, o.cfg.Concurrency.Ledgers, need, func(ctx context.Context, i int) error {
		ledger := o.gen.Ledger(have + i)
		outcome, err := o.ensureCreated(ctx, client.KindLedger,
			func(ctx context.Context) (client.EntityRef, error) {
				return o.api.CreateLedger(ctx, orgID, ledger)
			},
			func(ctx context.Context) (client.EntityRef, error) {
				refs, err := o.api.ListLedgers(ctx, orgID)
				if err != nil {
					return client.EntityRef{}, err
				}
				return findRef(refs, ledger.Name, func(r client.EntityRef) string { return r.Name })
			})
		if err != nil {
			o.state.TrackGenerationError(client.KindLedger, orgID, err, ledger.Name)
			return err
		}
		if outcome.Ref.ID != "" {
			o.state.AddEntityID(client.KindLedger, orgID, outcome.Ref.ID)
		}
		return nil
	})
	return err
}

// seedLedger runs the intra-ledger phase sequence: assets, then portfolios
// and segments, then accounts, then transactions. Assets and accounts are
// structural: when either set ends up empty the remaining phases of this
// ledger are skipped and counted as errors, while sibling ledgers continue.
func (o *Orchestrator) seedLedger(ctx context.Context, orgID, ledgerID string, orgIndex, ledgerIndex int) error {
	log := o.logger.With(
		zap.String("ledger_id", ledgerID),
		zap.Int("organization_index", orgIndex),
		zap.Int("ledger_index", ledgerIndex))
	step := fmt.Sprintf("organization[%d]/ledger[%d]", orgIndex, ledgerIndex)

	if err := o.generateAssets(ctx, orgID, ledgerID); err != nil {
		return err
	}
	assetCodes := o.ledgerAssetCodes(ledgerID)
	if len(assetCodes) == 0 {
		o.state.TrackGenerationError(client.KindAsset, ledgerID,
			errDependency(client.KindAccount, client.KindAsset, ledgerID),
			"asset generation produced nothing, skipping ledger contents")
		o.recordFailedStep(step + "/assets")
		log.Error("no assets created, skipping ledger contents")
		return nil
	}
	if err := o.pause(ctx); err != nil {
		return err
	}

	// Portfolios and segments are organizational metadata. Failures are
	// counted but never block accounts or transactions.
	if err := o.generatePortfolios(ctx, orgID, ledgerID); err != nil {
		return err
	}
	if err := o.generateSegments(ctx, orgID, ledgerID); err != nil {
		return err
	}
	if err := o.pause(ctx); err != nil {
		return err
	}

	if err := o.generateAccounts(ctx, orgID, ledgerID, assetCodes); err != nil {
		return err
	}
	accountIDs := o.state.IDs(client.KindAccount, ledgerID)
	if len(accountIDs) == 0 {
		o.state.TrackGenerationError(client.KindAccount, ledgerID,
			errDependency(client.KindTransaction, client.KindAccount, ledgerID),
			"account generation produced nothing, skipping transactions")
		o.recordFailedStep(step + "/accounts")
		log.Error("no accounts created, skipping transactions")
		return nil
	}
	if err := o.pause(ctx); err != nil {
		return err
	}

	if err := o.generateTransactions(ctx, orgID, ledgerID, accountIDs); err != nil {
		return err
	}

	log.Info("ledger seeded",
		zap.Int("assets", len(assetCodes)),
		zap.Int("accounts", len(accountIDs)),
		zap.Int("transactions", len(o.state.IDs(client.KindTransaction, ledgerID))))
	return nil
}

// generateAssets tops a ledger's asset set up to the configured count.
// Asset payloads are index-deterministic, so the conflict lookup can match
// on code.
func (o *Orchestrator) generateAssets(ctx context.Context, orgID, ledgerID string) error {
	have := len(o.state.IDs(client.KindAsset, ledgerID))
	need := o.cfg.Counts.AssetsPerLedger - have
	if need <= 0 {
		return nil
	}

	_, err := runBatch(ctx, o.cfg.Concurrency.Assets, need, func(ctx context.Context, i int) error {
		asset := o.gen.Asset(have + i)
		outcome, err := o.ensureCreated(ctx, client.KindAsset,
			func(ctx context.Context) (client.EntityRef, error) {
				return o.api.CreateAsset(ctx, orgID, ledgerID, asset)
			},
			func(ctx context.Context) (client.EntityRef, error) {
				refs, err := o.api.ListAssets(ctx, orgID, ledgerID)
				if err != nil {
					return client.EntityRef{}, err
				}
				return findRef(refs, asset.Code, func(r client.EntityRef) string { return r.Code })
			})
		if err != nil {
			o.state.TrackGenerationError(client.KindAsset, ledgerID, err, asset.Code)
			return err
		}
		if outcome.Ref.ID != "" {
			o.state.AddEntityID(client.KindAsset, ledgerID, outcome.Ref.ID)
			o.state.SetAssetCode(outcome.Ref.ID, asset.Code)
		}
		return nil
	})
	return err
}

func (o *Orchestrator) generatePortfolios(ctx context.Context, orgID, ledgerID string) error {
	have := len(o.state.IDs(client.KindPortfolio, ledgerID))
	need := o.cfg.Counts.PortfoliosPerLedger - have
	if need <= 0 {
		return nil
	}

	_, err := runBatch(ctx, o.cfg.Concurrency.Assets, need, func(ctx context.Context, i int) error {
		portfolio := o.gen.Portfolio(have + i)
		outcome, err := o.ensureCreated(ctx, client.KindPortfolio,
			func(ctx context.Context) (client.EntityRef, error) {
				return o.api.CreatePortfolio(ctx, orgID, ledgerID, portfolio)
			},
			func(ctx context.Context) (client.EntityRef, error) {
				refs, err := o.api.ListPortfolios(ctx, orgID, ledgerID)
				if err != nil {
					return client.EntityRef{}, err
				}
				return findRef(refs, portfolio.Name, func(r client.EntityRef) string { return r.Name })
			})
		if err != nil {
			o.state.TrackGenerationError(client.KindPortfolio, ledgerID, err, portfolio.Name)
			return err
		}
		if outcome.Ref.ID != "" {
			o.state.AddEntityID(client.KindPortfolio, ledgerID, outcome.Ref.ID)
		}
		return nil
	})
	return err
}

func (o *Orchestrator) generateSegments(ctx context.Context, orgID, ledgerID string) error {
	have := len(o.state.IDs(client.KindSegment, ledgerID))
	need := o.cfg.Counts.SegmentsPerLedger - have
	if need <= 0 {
		return nil
	}

	_, err := runBatch(ctx, o.cfg.Concurrency.Assets, need, func(ctx context.Context, i int) error {
		segment := o.gen.Segment(have + i)
		outcome, err := o.ensureCreated(ctx, client.KindSegment,
			func(ctx context.Context) (client.EntityRef, error) {
				return o.api.CreateSegment(ctx, orgID, ledgerID, segment)
			},
			func(ctx context.Context) (client.EntityRef, error) {
				refs, err := o.api.ListSegments(ctx, orgID, ledgerID)
				if err != nil {
					return client.EntityRef{}, err
				}
				return findRef(refs, segment.Name, func(r client.EntityRef) string { return r.Name })
			})
		if err != nil {
			o.state.TrackGenerationError(client.KindSegment, ledgerID, err, segment.Name)
			return err
		}
		if outcome.Ref.ID != "" {
			o.state.AddEntityID(client.KindSegment, ledgerID, outcome.Ref.ID)
		}
		return nil
	})
	return err
}

// generateAccounts tops a ledger's accounts up to the configured count.
// Asset codes are assigned round-robin so every asset ends up with account
// coverage and most assets get the two or more accounts transactions need.
func (o *Orchestrator) generateAccounts(ctx context.Context, orgID, ledgerID string, assetCodes []string) error {
	have := len(o.state.IDs(client.KindAccount, ledgerID))
	need := o.cfg.Counts.AccountsPerLedger - have
	if need <= 0 {
		return nil
	}

	_, err := runBatch(ctx, o.cfg.Concurrency.Accounts, need, func(ctx context.Context, i int) error {
		index := have + i
		account := o.gen.Account(index, assetCodes[index%len(assetCodes)])
		outcome, err := o.ensureCreated(ctx, client.KindAccount,
			func(ctx context.Context) (client.EntityRef, error) {
				return o.api.CreateAccount(ctx, orgID, ledgerID, account)
			},
			func(ctx context.Context) (client.EntityRef, error) {
				refs, err := o.api.ListAccounts(ctx, orgID, ledgerID)
				if err != nil {
					return client.EntityRef{}, err
				}
				return findRef(refs, account.Alias, func(r client.EntityRef) string { return r.Alias })
			})
		if err != nil {
			o.state.TrackGenerationError(client.KindAccount, ledgerID, err, account.Alias)
			return err
		}
		if outcome.Ref.ID != "" {
			o.state.AddEntityID(client.KindAccount, ledgerID, outcome.Ref.ID)
			o.state.SetAccountAlias(outcome.Ref.ID, account.Alias)
			o.state.SetAccountAssetCode(outcome.Ref.ID, account.AssetCode)
		}
		return nil
	})
	return err
}

// generateTransactions creates transfers between account pairs holding the
// same asset. Accounts are grouped by asset code; groups with fewer than
// two members cannot transact and are skipped. Transactions carry unique
// idempotency keys, so no conflict lookup is wired.
func (o *Orchestrator) generateTransactions(ctx context.Context, orgID, ledgerID string, accountIDs []string) error {
	groups := o.transactableGroups(accountIDs)
	if len(groups) == 0 {
		o.state.TrackGenerationError(client.KindTransaction, ledgerID,
			errDependency(client.KindTransaction, client.KindAccount, ledgerID),
			"no asset has two or more accounts")
		o.logger.Warn("no transactable account pairs", zap.String("ledger_id", ledgerID))
		return nil
	}

	need := o.cfg.Counts.TransactionsPerLedger
	_, err := runBatch(ctx, o.cfg.Concurrency.Transactions, need, func(ctx context.Context, i int) error {
		group := groups[i%len(groups)]
		src := group.accounts[i%len(group.accounts)]
		dst := group.accounts[(i+1)%len(group.accounts)]
		tx := o.gen.Transaction(group.assetCode, src, dst)

		outcome, err := o.ensureCreated(ctx, client.KindTransaction,
			func(ctx context.Context) (client.EntityRef, error) {
				return o.api.CreateTransaction(ctx, orgID, ledgerID, tx)
			}, nil)
		if err != nil {
			o.state.TrackGenerationError(client.KindTransaction, ledgerID, err, group.assetCode)
			return err
		}
		if outcome.Ref.ID != "" {
			o.state.AddEntityID(client.KindTransaction, ledgerID, outcome.Ref.ID)
		}
		return nil
	})
	return err
}

// assetGroup is the set of a ledger's accounts holding one asset.
type assetGroup struct {
	assetCode string
	accounts  []string
}

// transactableGroups partitions accounts by asset code and keeps the groups
// with at least two members, ordered by code for reproducibility.
func (o *Orchestrator) transactableGroups(accountIDs []string) []assetGroup {
	byCode := make(map[string][]string)
	for _, id := range accountIDs {
		code, ok := o.state.AccountAssetCode(id)
		if !ok {
			continue
		}
		byCode[code] = append(byCode[code], id)
	}

	var groups []assetGroup
	for code, ids := range byCode {
		if len(ids) >= 2 {
			groups = append(groups, assetGroup{assetCode: code, accounts: ids})
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].assetCode < groups[j].assetCode })
	return groups
}

// ledgerAssetCodes returns the codes of a ledger's recorded assets, in
// creation order.
func (o *Orchestrator) ledgerAssetCodes(ledgerID string) []string {
	assetIDs := o.state.IDs(client.KindAsset, ledgerID)
	codes := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		if code, ok := o.state.AssetCode(id); ok {
			codes = append(codes, code)
		}
	}
	return codes
}

// findRef locates the ref whose key matches want, for conflict recovery.
func findRef(refs []client.EntityRef, want string, key func(client.EntityRef) string) (client.EntityRef, error) {
	for _, r := range refs {
		if key(r) == want {
			return r, nil
		}
	}
	return client.EntityRef{}, fmt.Errorf("existing entity %q not found in listing", want)
}

func errDependency(kind, requires client.EntityKind, parentID string) error {
	return &DependencyError{Kind: kind, Requires: requires, ParentID: parentID}
}
