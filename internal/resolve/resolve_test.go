package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/infra/memory"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "owner-1"

func rec(amount, desc, typeHint string) *domain.ParsedRecord {
	at := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	return &domain.ParsedRecord{
		SignedAmount: decimal.RequireFromString(amount),
		OccurredAt:   at,
		Date:         civil.DateOf(at),
		Description:  desc,
		TypeHint:     typeHint,
	}
}

func TestAccount_Affinity(t *testing.T) {
	store := memory.NewStore()
	cash := store.AddAccount(ledger.Account{OwnerID: owner, Name: "Wallet", Type: ledger.AccountCash})
	wechat := store.AddAccount(ledger.Account{OwnerID: owner, Name: "微信零钱", Type: "other"})
	bank := store.AddAccount(ledger.Account{OwnerID: owner, Name: "Salary card", Type: ledger.AccountBank})
	cmb := store.AddAccount(ledger.Account{OwnerID: owner, Name: "招商银行储蓄卡", Type: ledger.AccountBank})

	r := New(store)
	tests := []struct {
		provider domain.Provider
		want     string
	}{
		{domain.ProviderWeChat, wechat},
		{domain.ProviderCMB, cmb},
		{domain.ProviderBOC, bank},
		{domain.ProviderAlipay, cash},
		{domain.ProviderManual, cash},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			acc, err := r.Account(context.Background(), owner, tt.provider, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, acc.AccountID)
		})
	}
}

func TestAccount_FallbackPolicy(t *testing.T) {
	store := memory.NewStore()
	first := store.AddAccount(ledger.Account{OwnerID: owner, Name: "Brokerage", Type: "investment"})

	acc, err := New(store).Account(context.Background(), owner, domain.ProviderCMB, "")
	require.NoError(t, err)
	assert.Equal(t, first, acc.AccountID)

	_, err = New(store, WithAccountFallback(AccountFallbackNone)).Account(context.Background(), owner, domain.ProviderCMB, "")
	var noAcc *domain.NoAccountError
	assert.True(t, errors.As(err, &noAcc))
}

func TestAccount_NoAccounts(t *testing.T) {
	_, err := New(memory.NewStore()).Account(context.Background(), owner, domain.ProviderWeChat, "")
	assert.Equal(t, domain.CodeNoAccount, domain.Code(err))
}

func TestAccount_Override(t *testing.T) {
	store := memory.NewStore()
	store.AddAccount(ledger.Account{OwnerID: owner, Name: "微信", Type: ledger.AccountWeChat})
	other := store.AddAccount(ledger.Account{OwnerID: owner, Name: "Cash", Type: ledger.AccountCash})

	acc, err := New(store).Account(context.Background(), owner, domain.ProviderWeChat, other)
	require.NoError(t, err)
	assert.Equal(t, other, acc.AccountID)

	_, err = New(store).Account(context.Background(), owner, domain.ProviderWeChat, "missing")
	assert.Equal(t, domain.CodeNoAccount, domain.Code(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		rec      *domain.ParsedRecord
		wantName string
		wantType string
	}{
		{"income", rec("100", "转账", ""), BucketSalary, ledger.CategoryIncome},
		{"dining", rec("-30", "美团外卖", ""), BucketDining, ledger.CategoryExpense},
		{"transport", rec("-15", "滴滴出行", ""), BucketTransport, ledger.CategoryExpense},
		{"merchant type", rec("-9", "Some shop", "商户消费"), BucketShopping, ledger.CategoryExpense},
		{"english", rec("-9", "Big Mart", "Merchant payment"), BucketShopping, ledger.CategoryExpense},
		{"other", rec("-9", "红包", "微信红包"), BucketOther, ledger.CategoryExpense},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, typ := Classify(tt.rec)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantType, typ)
		})
	}
}

func TestCategories_CreatesMissingOnce(t *testing.T) {
	store := memory.NewStore()
	dining, _ := store.CreateCategory(context.Background(), &ledger.Category{OwnerID: owner, Name: BucketDining, Type: ledger.CategoryExpense, IsSystem: true})

	records := []*domain.ParsedRecord{rec("-30", "美团", ""), rec("100", "salary", ""), rec("200", "bonus", "")}
	got, err := New(store).Categories(context.Background(), owner, records)
	require.NoError(t, err)

	require.Len(t, got.Created, 1)
	assert.Equal(t, dining, got.CategoryIDs[0])
	assert.Equal(t, got.Created[0], got.CategoryIDs[1])
	assert.Equal(t, got.CategoryIDs[1], got.CategoryIDs[2])

	categories, _ := store.FindCategoriesByOwner(context.Background(), owner)
	require.Len(t, categories, 2)
	created := categories[1]
	assert.Equal(t, BucketSalary, created.Name)
	assert.False(t, created.IsSystem)
	assert.Equal(t, DefaultIcon, created.Icon)
	assert.Equal(t, DefaultColor, created.Color)
}

func TestCategories_FirstFallback(t *testing.T) {
	store := memory.NewStore()
	misc, _ := store.CreateCategory(context.Background(), &ledger.Category{OwnerID: owner, Name: "Misc", Type: ledger.CategoryExpense})

	got, err := New(store, WithCategoryFallback(CategoryFallbackFirst)).Categories(context.Background(), owner, []*domain.ParsedRecord{rec("-30", "美团", "")})
	require.NoError(t, err)
	assert.Empty(t, got.Created)
	assert.Equal(t, misc, got.CategoryIDs[0])
}

type hintFunc func(ctx context.Context, reqs []HintRequest, candidates []string) ([]string, error)

func (f hintFunc) Suggest(ctx context.Context, reqs []HintRequest, candidates []string) ([]string, error) {
	return f(ctx, reqs, candidates)
}

func TestCategories_HintOnlyPicksExistingNames(t *testing.T) {
	store := memory.NewStore()
	gifts, _ := store.CreateCategory(context.Background(), &ledger.Category{OwnerID: owner, Name: "Gifts", Type: ledger.CategoryExpense})

	var asked []HintRequest
	hint := hintFunc(func(_ context.Context, reqs []HintRequest, candidates []string) ([]string, error) {
		asked = reqs
		assert.Equal(t, []string{"Gifts"}, candidates)
		return []string{"Gifts", "Invented"}, nil
	})

	records := []*domain.ParsedRecord{rec("-66", "红包", ""), rec("-5", "unknown", ""), rec("-30", "美团", "")}
	got, err := New(store, WithHint(hint)).Categories(context.Background(), owner, records)
	require.NoError(t, err)

	assert.Len(t, asked, 2)
	assert.Equal(t, gifts, got.CategoryIDs[0])
	assert.NotEqual(t, gifts, got.CategoryIDs[1])
	assert.Len(t, got.Created, 2, "generic and dining buckets are created")
}

func TestCategories_HintErrorFallsBack(t *testing.T) {
	store := memory.NewStore()
	store.CreateCategory(context.Background(), &ledger.Category{OwnerID: owner, Name: "Gifts", Type: ledger.CategoryExpense})
	hint := hintFunc(func(context.Context, []HintRequest, []string) ([]string, error) {
		return nil, errors.New("quota exceeded")
	})

	got, err := New(store, WithHint(hint)).Categories(context.Background(), owner, []*domain.ParsedRecord{rec("-66", "红包", "")})
	require.NoError(t, err)
	assert.Len(t, got.Created, 1)
}
