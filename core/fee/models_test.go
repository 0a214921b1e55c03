package fee

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

// uniqueness only answers CheckUniqueness.
type uniqueness struct {
	Service
	taken bool
}

func (u uniqueness) CheckUniqueness(context.Context, string, string, string) error {
	if u.taken {
		return core.NewValidationError(ErrStructureExists, core.FieldError{Field: "class_name", Error: ErrStructureExists.Error()})
	}
	return nil
}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func errFields(t *testing.T, err error) []string {
	t.Helper()
	verrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok, err)
	var fields []string
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

const (
	maxItemAmount = 1_000_000_000_000
	maxItems      = 50
)

func TestStructure_Totals(t *testing.T) {
	s := Structure{Items: Items{
		{Category: "Tuition", Amount: 150000},
		{Category: "Uniform", Amount: 25000, Optional: true},
		{Category: "Exams", Amount: 10000},
	}}
	assert.EqualValues(t, 160000, s.Total())
	assert.EqualValues(t, 185000, s.GrandTotal())
	assert.Zero(t, Structure{}.Total())

	var largest Items
	for i := 0; i < maxItems; i++ {
		largest = append(largest, Item{Category: fmt.Sprintf("Fee %d", i), Amount: maxItemAmount})
	}
	assert.EqualValues(t, maxItems*maxItemAmount, Structure{Items: largest}.GrandTotal(), "the largest valid structure does not overflow")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.EqualValues(t, 160000, got["total"])
	assert.EqualValues(t, 185000, got["grand_total"])
	assert.Len(t, got["items"], 3)
}

func TestNewStructure_Validate(t *testing.T) {
	validate := newValidator()
	ctx := context.Background()
	valid := func() NewStructure {
		return NewStructure{
			SchoolID:     "9b2e8a3c-5a43-4c1e-9d0c-0d6f3f1f9a10",
			ClassName:    " 6 Sec-B ",
			AcademicYear: "2024/2025",
			Currency:     " usd",
			Items:        []Item{{Category: " Tuition ", Amount: 150000}, {Category: "Uniform", Amount: 25000, Optional: true}},
		}
	}

	tests := []struct {
		name       string
		edit       func(ns *NewStructure)
		wantFields []string
	}{
		{name: "valid"},
		{name: "missing school", edit: func(ns *NewStructure) { ns.SchoolID = "" }, wantFields: []string{"school_id"}},
		{name: "years do not follow", edit: func(ns *NewStructure) { ns.AcademicYear = "2024/2026" }, wantFields: []string{"academic_year"}},
		{name: "year format", edit: func(ns *NewStructure) { ns.AcademicYear = "2024-2025" }, wantFields: []string{"academic_year"}},
		{name: "currency", edit: func(ns *NewStructure) { ns.Currency = "dollars" }, wantFields: []string{"currency"}},
		{name: "no items", edit: func(ns *NewStructure) { ns.Items = nil }, wantFields: []string{"items"}},
		{
			name:       "duplicate categories ignore case",
			edit:       func(ns *NewStructure) { ns.Items = append(ns.Items, Item{Category: "TUITION", Amount: 1}) },
			wantFields: []string{"items"},
		},
		{name: "zero amount", edit: func(ns *NewStructure) { ns.Items[1].Amount = 0 }, wantFields: []string{"amount"}},
		{name: "amount too large", edit: func(ns *NewStructure) { ns.Items[0].Amount = math.MaxInt64 }, wantFields: []string{"amount"}},
		{name: "largest amount", edit: func(ns *NewStructure) { ns.Items[0].Amount = maxItemAmount }},
		{
			name: "too many items",
			edit: func(ns *NewStructure) {
				ns.Items = nil
				for i := 0; i <= maxItems; i++ {
					ns.Items = append(ns.Items, Item{Category: fmt.Sprintf("Fee %d", i), Amount: 1})
				}
			},
			wantFields: []string{"items"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ns := valid()
			if tt.edit != nil {
				tt.edit(&ns)
			}
			err := ns.Validate(ctx, validate, uniqueness{})
			if tt.wantFields == nil {
				require.NoError(t, err)
				assert.Greater(t, Structure{Items: ns.Items}.GrandTotal(), int64(0))
				assert.Equal(t, "6 Sec-B", ns.ClassName)
				assert.Equal(t, "USD", ns.Currency)
				assert.Equal(t, "Tuition", ns.Items[0].Category)
				return
			}
			assert.ElementsMatch(t, tt.wantFields, errFields(t, err))
		})
	}

	t.Run("taken", func(t *testing.T) {
		ns := valid()
		err := ns.Validate(ctx, validate, uniqueness{taken: true})
		verr, ok := err.(*core.ValidationError)
		require.True(t, ok, err)
		assert.Equal(t, []core.FieldError{{Field: "class_name", Error: ErrStructureExists.Error()}}, verr.Fields)
	})
}

func TestUpdateStructure_Validate(t *testing.T) {
	validate := newValidator()

	us := UpdateStructure{Currency: "cdf "}
	require.NoError(t, us.Validate(validate))
	assert.Equal(t, "CDF", us.Currency)

	assert.NoError(t, (&UpdateStructure{}).Validate(validate))

	us = UpdateStructure{Items: []Item{{Category: "Bus", Amount: 10}, {Category: " bus", Amount: 20}}}
	assert.Equal(t, []string{"items"}, errFields(t, us.Validate(validate)))
}

func TestItems_ValueScan(t *testing.T) {
	val, err := Items(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), val)

	items := Items{{Category: "Tuition", Amount: 150000}}
	val, err = items.Value()
	require.NoError(t, err)

	var scanned Items
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, items, scanned)
	require.NoError(t, scanned.Scan(`[{"category":"Bus","amount":5,"optional":true}]`))
	assert.Equal(t, Items{{Category: "Bus", Amount: 5, Optional: true}}, scanned)
	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, Items{}, scanned)
	assert.Error(t, scanned.Scan(3.14))
}
