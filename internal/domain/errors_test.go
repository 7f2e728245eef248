package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"decode", &DecodeError{File: "a.csv", Tried: []string{"gbk"}}, CodeDecode},
		{"auth wrapped", fmt.Errorf("open: %w", &AuthError{File: "a.pdf", Err: errors.New("bad")}), CodeAuth},
		{"header", &HeaderNotFoundError{File: "a.csv", Provider: ProviderWeChat, Expected: "交易时间"}, CodeHeaderNotFound},
		{"no account", &NoAccountError{OwnerID: "u1"}, CodeNoAccount},
		{"store", &StoreError{Op: "insert", Err: errors.New("io")}, CodeStore},
		{"validation", &ValidationError{File: "a.csv", Row: 3, Field: "amount", Reason: "zero"}, CodeValidation},
		{"other", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Code(tt.err))
		})
	}
}

func TestValidationError_MessageNamesFileAndRow(t *testing.T) {
	err := &ValidationError{File: "bill.csv", Row: 17, Field: "amount", Reason: "not a number"}
	assert.Contains(t, err.Error(), "bill.csv")
	assert.Contains(t, err.Error(), "row 17")

	pdfErr := &ValidationError{File: "cmb.pdf", Page: 2, Row: 4, Field: "date", Reason: "bad"}
	assert.Contains(t, pdfErr.Error(), "page 2 row 4")
}

func TestRawRow_Get(t *testing.T) {
	row := RawRow{Columns: []string{ColDate, ColAmount}, Cells: []string{" 2024-01-02 ", "-3.50"}}
	assert.Equal(t, "2024-01-02", row.Get(ColDate))
	assert.Equal(t, "-3.50", row.Get(ColAmount))
	assert.Equal(t, "", row.Get(ColBalance))
	assert.True(t, row.Has(ColAmount))
	assert.False(t, row.Has(ColDebit))
}

func TestKindFromFilename(t *testing.T) {
	k, err := KindFromFilename("Bill.CSV")
	assert.NoError(t, err)
	assert.Equal(t, KindCSV, k)

	k, err = KindFromFilename("statement.pdf")
	assert.NoError(t, err)
	assert.Equal(t, KindPDF, k)

	_, err = KindFromFilename("notes.txt")
	assert.Error(t, err)
}
