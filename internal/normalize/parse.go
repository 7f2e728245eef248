package normalize

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/statement-import/internal/domain"
	"github.com/shopspring/decimal"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	"2006/1/2",
	"2006.01.02",
	"20060102",
}

var timeLayouts = []string{
	"15:04:05",
	"15:04",
}

var amountNoise = strings.NewReplacer(
	"¥", "",
	"￥", "",
	"元", "",
	",", "",
	" ", "",
	"CNY", "",
	"RMB", "",
)

// parseAmount reads a decimal amount, tolerating currency marks and thousands separators.
func parseAmount(field, s string) (decimal.Decimal, error) {
	clean := amountNoise.Replace(strings.TrimSpace(s))
	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean, negative = clean[1:len(clean)-1], true
	}
	clean = strings.TrimPrefix(clean, "+")
	if clean == "" {
		return decimal.Zero, invalid(field, "empty amount")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, invalid(field, "invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// optionalAmount parses s when present. ok is false for empty cells and dashes.
func optionalAmount(field, s string) (decimal.Decimal, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" || s == "/" || s == "--" {
		return decimal.Zero, false, nil
	}
	d, err := parseAmount(field, s)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}

// parseDateTime accepts a date with "/" or "-" separators, optionally followed
// by a time. Without a time the instant is midnight in loc and the date is kept.
func parseDateTime(field, s string, loc *time.Location) (time.Time, civil.Date, bool, error) {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "T", " ")), " ")
	if s == "" {
		return time.Time{}, civil.Date{}, false, invalid(field, "empty date")
	}

	datePart, timePart, _ := strings.Cut(s, " ")
	for _, dl := range dateLayouts {
		if timePart == "" {
			if t, err := time.ParseInLocation(dl, datePart, loc); err == nil {
				return t, civil.DateOf(t), false, nil
			}
			continue
		}
		for _, tl := range timeLayouts {
			if t, err := time.ParseInLocation(dl+" "+tl, datePart+" "+timePart, loc); err == nil {
				return t, civil.DateOf(t), true, nil
			}
		}
	}
	return time.Time{}, civil.Date{}, false, invalid(field, "unrecognised date %q", s)
}

// directionWord maps income/expense labels. ok is false for anything else.
func directionWord(s string) (domain.Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "收入", "income", "收", "credit":
		return domain.DirectionIncome, true
	case "支出", "expense", "支", "debit":
		return domain.DirectionExpense, true
	default:
		return domain.DirectionNeutral, false
	}
}

// signed applies a direction to an absolute amount.
func signed(dir domain.Direction, amount decimal.Decimal) decimal.Decimal {
	if dir == domain.DirectionExpense {
		return amount.Abs().Neg()
	}
	return amount.Abs()
}

// firstUseful returns the first candidate that carries information.
func firstUseful(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && c != "/" && c != "-" {
			return c
		}
	}
	return ""
}

// joinUseful space-joins the informative candidates.
func joinUseful(candidates ...string) string {
	var parts []string
	for _, c := range candidates {
		if c = firstUseful(c); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

func balancePtr(field, s string) (*decimal.Decimal, error) {
	d, ok, err := optionalAmount(field, s)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}
