// Package resolve binds parsed records to ledger entities: the target
// account for the whole file and a category per record.
package resolve

import (
	"context"
	"errors"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
)

// AccountFallback policies for files with no affine account.
const (
	AccountFallbackFirst = "first"
	AccountFallbackNone  = "none"
)

type affinity struct {
	types   []string
	names   []string
	generic []string
}

var affinities = map[domain.Provider]affinity{
	domain.ProviderWeChat: {types: []string{ledger.AccountWeChat}, names: []string{"微信", "wechat"}, generic: []string{ledger.AccountCash, ledger.AccountBank}},
	domain.ProviderAlipay: {types: []string{ledger.AccountAlipay}, names: []string{"支付宝", "alipay"}, generic: []string{ledger.AccountCash, ledger.AccountBank}},
	domain.ProviderCMB:    {types: []string{"cmb"}, names: []string{"招商", "招行", "cmb"}, generic: []string{ledger.AccountBank}},
	domain.ProviderBOC:    {types: []string{"boc"}, names: []string{"中国银行", "中行", "boc"}, generic: []string{ledger.AccountBank}},
	domain.ProviderManual: {generic: []string{ledger.AccountCash, ledger.AccountBank}},
}

// Account picks the target account. An explicit accountID wins; otherwise
// an account affine to the provider, then a generic cash/bank account, then
// the fallback policy.
func (r *Resolver) Account(ctx context.Context, ownerID string, provider domain.Provider, accountID string) (*ledger.Account, error) {
	log := logger.FromContext(ctx)

	if accountID != "" {
		acc, err := ledger.FindAccount(ctx, r.store, ownerID, accountID)
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, &domain.NoAccountError{OwnerID: ownerID}
		}
		if err != nil {
			return nil, &domain.StoreError{Op: "find accounts", Err: err}
		}
		return acc, nil
	}

	accounts, err := r.store.FindAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, &domain.StoreError{Op: "find accounts", Err: err}
	}
	if len(accounts) == 0 {
		return nil, &domain.NoAccountError{OwnerID: ownerID}
	}

	aff := affinities[provider]
	if acc := pick(accounts, func(a *ledger.Account) bool {
		return containsFold(aff.types, a.Type) || nameMatches(a.Name, aff.names)
	}); acc != nil {
		return acc, nil
	}
	if acc := pick(accounts, func(a *ledger.Account) bool { return containsFold(aff.generic, a.Type) }); acc != nil {
		log.Debug().Str("account_id", acc.AccountID).Str("provider", string(provider)).Msg("using generic account")
		return acc, nil
	}

	switch r.accountFallback {
	case AccountFallbackNone:
		return nil, &domain.NoAccountError{OwnerID: ownerID}
	default:
		log.Warn().Str("account_id", accounts[0].AccountID).Str("provider", string(provider)).Msg("no matching account, using first account")
		return accounts[0], nil
	}
}

func pick(accounts []*ledger.Account, match func(*ledger.Account) bool) *ledger.Account {
	for _, a := range accounts {
		if match(a) {
			return a
		}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func nameMatches(name string, keywords []string) bool {
	name = strings.ToLower(name)
	for _, k := range keywords {
		if strings.Contains(name, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
