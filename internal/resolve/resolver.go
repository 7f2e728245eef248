package resolve

import "github.com/dvloznov/statement-import/internal/ledger"

// Resolver binds records to the owner's accounts and categories.
type Resolver struct {
	store            ledger.Store
	accountFallback  string
	categoryFallback string
	hint             CategoryHint
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAccountFallback sets the policy used when no account matches the provider.
func WithAccountFallback(policy string) Option {
	return func(r *Resolver) { r.accountFallback = policy }
}

// WithCategoryFallback sets the policy used when a bucket has no category.
func WithCategoryFallback(policy string) Option {
	return func(r *Resolver) { r.categoryFallback = policy }
}

// WithHint enables model-assisted categorisation.
func WithHint(h CategoryHint) Option {
	return func(r *Resolver) { r.hint = h }
}

// New creates a Resolver with first-account and create-category defaults.
func New(store ledger.Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:            store,
		accountFallback:  AccountFallbackFirst,
		categoryFallback: CategoryFallbackCreate,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
