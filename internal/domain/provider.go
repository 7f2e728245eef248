package domain

import (
	"fmt"
	"strings"
)

// Provider identifies the statement source a record came from.
type Provider string

const (
	ProviderManual Provider = "manual"
	ProviderWeChat Provider = "wechat"
	ProviderAlipay Provider = "alipay"
	ProviderCMB    Provider = "cmb"
	ProviderBOC    Provider = "boc"
)

// Providers lists every known provider in a stable order.
var Providers = []Provider{ProviderManual, ProviderWeChat, ProviderAlipay, ProviderCMB, ProviderBOC}

// ParseProvider converts a user supplied name into a Provider.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Kind is the declared document format.
type Kind string

const (
	KindCSV  Kind = "csv"
	KindXLSX Kind = "xlsx"
	KindPDF  Kind = "pdf"
)

// KindFromFilename derives the document kind from a file extension.
func KindFromFilename(name string) (Kind, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return KindCSV, nil
	case strings.HasSuffix(lower, ".xlsx"):
		return KindXLSX, nil
	case strings.HasSuffix(lower, ".pdf"):
		return KindPDF, nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", name)
	}
}

// Direction is the income/expense classification of a statement line.
type Direction int

const (
	DirectionNeutral Direction = iota
	DirectionIncome
	DirectionExpense
)

func (d Direction) String() string {
	switch d {
	case DirectionIncome:
		return "income"
	case DirectionExpense:
		return "expense"
	default:
		return "neutral"
	}
}
