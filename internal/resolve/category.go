package resolve

import (
	"context"
	"strings"

	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/dvloznov/statement-import/internal/ledger"
	"github.com/dvloznov/statement-import/internal/logger"
)

// CategoryFallback policies for a bucket with no existing category.
const (
	CategoryFallbackCreate = "create"
	CategoryFallbackFirst  = "first"
)

// Defaults for auto-created categories.
const (
	DefaultIcon  = "tag"
	DefaultColor = "#9E9E9E"
)

// Bucket names.
const (
	BucketSalary    = "工资"
	BucketDining    = "餐饮"
	BucketTransport = "交通"
	BucketShopping  = "购物"
	BucketOther     = "其他"
)

type bucket struct {
	name     string
	keywords []string
}

// expenseBuckets are tried in order; the first keyword hit wins.
var expenseBuckets = []bucket{
	{BucketDining, []string{"餐", "饭", "美团", "饿了么", "外卖", "肯德基", "麦当劳", "星巴克", "咖啡", "瑞幸", "restaurant", "coffee", "lunch", "dinner", "breakfast"}},
	{BucketTransport, []string{"滴滴", "地铁", "公交", "出行", "打车", "加油", "高铁", "12306", "铁路", "航空", "taxi", "metro", "uber"}},
	{BucketShopping, []string{"消费", "商户", "购物", "淘宝", "天猫", "京东", "拼多多", "超市", "consumption", "merchant", "shopping"}},
}

// HintRequest describes one record a CategoryHint may classify.
type HintRequest struct {
	Description string
	TypeHint    string
	Type        string
}

// CategoryHint suggests one of the candidate names per request, or "" to
// abstain. Suggestions outside candidates are ignored.
type CategoryHint interface {
	Suggest(ctx context.Context, reqs []HintRequest, candidates []string) ([]string, error)
}

// Assignment is the category chosen for every record, aligned by index,
// plus the IDs of categories created while resolving.
type Assignment struct {
	CategoryIDs []string
	Created     []string
}

// Classify returns the keyword bucket and category type for a record.
// All income is salary; expenses go by keywords, else the generic bucket.
func Classify(rec *domain.ParsedRecord) (name, typ string) {
	if rec.Direction() == domain.DirectionIncome {
		return BucketSalary, ledger.CategoryIncome
	}

	text := strings.ToLower(rec.Description + " " + rec.TypeHint)
	for _, b := range expenseBuckets {
		for _, k := range b.keywords {
			if strings.Contains(text, k) {
				return b.name, ledger.CategoryExpense
			}
		}
	}
	return BucketOther, ledger.CategoryExpense
}

// Categories resolves a category for every record.
func (r *Resolver) Categories(ctx context.Context, ownerID string, records []*domain.ParsedRecord) (*Assignment, error) {
	log := logger.FromContext(ctx)

	existing, err := r.store.FindCategoriesByOwner(ctx, ownerID)
	if err != nil {
		return nil, &domain.StoreError{Op: "find categories", Err: err}
	}
	idx := newCategoryIndex(existing)

	names := make([]string, len(records))
	types := make([]string, len(records))
	for i, rec := range records {
		names[i], types[i] = Classify(rec)
	}
	r.applyHints(ctx, records, names, types, idx)

	out := &Assignment{CategoryIDs: make([]string, len(records))}
	for i := range records {
		id, created, err := r.ensure(ctx, ownerID, names[i], types[i], idx)
		if err != nil {
			return nil, err
		}
		if created {
			out.Created = append(out.Created, id)
			log.Info().Str("category_id", id).Str("name", names[i]).Msg("created category")
		}
		out.CategoryIDs[i] = id
	}
	return out, nil
}

// applyHints asks the hint about records that fell into the generic bucket.
func (r *Resolver) applyHints(ctx context.Context, records []*domain.ParsedRecord, names, types []string, idx *categoryIndex) {
	if r.hint == nil {
		return
	}
	candidates := idx.names(ledger.CategoryExpense)
	if len(candidates) == 0 {
		return
	}

	var (
		reqs []HintRequest
		at   []int
	)
	for i, rec := range records {
		if names[i] == BucketOther && types[i] == ledger.CategoryExpense {
			reqs = append(reqs, HintRequest{Description: rec.Description, TypeHint: rec.TypeHint, Type: types[i]})
			at = append(at, i)
		}
	}
	if len(reqs) == 0 {
		return
	}

	suggestions, err := r.hint.Suggest(ctx, reqs, candidates)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("category hint failed, using keywords")
		return
	}
	for j, s := range suggestions {
		if j < len(at) && idx.lookup(s, ledger.CategoryExpense) != "" {
			names[at[j]] = s
		}
	}
}

func (r *Resolver) ensure(ctx context.Context, ownerID, name, typ string, idx *categoryIndex) (string, bool, error) {
	if id := idx.lookup(name, typ); id != "" {
		return id, false, nil
	}
	if r.categoryFallback == CategoryFallbackFirst {
		if id := idx.first(typ); id != "" {
			return id, false, nil
		}
	}

	c := &ledger.Category{
		OwnerID:  ownerID,
		Name:     name,
		Type:     typ,
		Icon:     DefaultIcon,
		Color:    DefaultColor,
		IsSystem: false,
	}
	id, err := r.store.CreateCategory(ctx, c)
	if err != nil {
		return "", false, &domain.StoreError{Op: "create category", Err: err}
	}
	c.CategoryID = id
	idx.add(c)
	return id, true, nil
}

type categoryIndex struct {
	all []*ledger.Category
}

func newCategoryIndex(categories []*ledger.Category) *categoryIndex {
	return &categoryIndex{all: append([]*ledger.Category(nil), categories...)}
}

func (x *categoryIndex) lookup(name, typ string) string {
	for _, c := range x.all {
		if c.Type == typ && c.Name == name {
			return c.CategoryID
		}
	}
	return ""
}

func (x *categoryIndex) first(typ string) string {
	for _, c := range x.all {
		if c.Type == typ {
			return c.CategoryID
		}
	}
	return ""
}

func (x *categoryIndex) names(typ string) []string {
	var out []string
	for _, c := range x.all {
		if c.Type == typ {
			out = append(out, c.Name)
		}
	}
	return out
}

func (x *categoryIndex) add(c *ledger.Category) {
	x.all = append(x.all, c)
}
