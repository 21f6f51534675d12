package compare

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFields_BlankMeansNotProvided(t *testing.T) {
	p, err := ParseFields(map[string]string{
		FieldPrice:          "  ",
		FieldKcalPer100g:    "",
		FieldProteinPercent: "32",
	})
	require.NoError(t, err)
	assert.Nil(t, p.Price)
	assert.Nil(t, p.KcalPer100g)
	require.NotNil(t, p.ProteinPercent)
	assert.Equal(t, 32.0, *p.ProteinPercent)
}

func TestParseFields_GroupedNumbers(t *testing.T) {
	p, err := ParseFields(map[string]string{FieldPrice: "1,234.5"})
	require.NoError(t, err)
	require.NotNil(t, p.Price)
	assert.Equal(t, 1234.5, *p.Price)
}

func TestParseFields_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		field string
		raw   string
	}{
		{"not a number", FieldKcalPer100g, "abc"},
		{"nan", FieldWeightKg, "NaN"},
		{"infinite", FieldPrice, "Inf"},
		{"percent above 100", FieldProteinPercent, "101"},
		{"negative percent", FieldFatPercent, "-1"},
		{"zero kcal", FieldKcalPer100g, "0"},
		{"zero weight", FieldWeightKg, "0"},
		{"negative price", FieldPrice, "-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFields(map[string]string{tt.field: tt.raw})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.raw, verr.Value)
		})
	}
}

func TestParseFields_ZeroPriceAllowed(t *testing.T) {
	p, err := ParseFields(map[string]string{FieldPrice: "0"})
	require.NoError(t, err)
	require.NotNil(t, p.Price)
	assert.Zero(t, *p.Price)
}

func TestParseFields_FirstBadFieldInDisplayOrder(t *testing.T) {
	_, err := ParseFields(map[string]string{
		FieldWeightKg:       "x",
		FieldProteinPercent: "y",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldProteinPercent, verr.Field)
}

func TestParseFields_UnknownField(t *testing.T) {
	_, err := ParseFields(map[string]string{"sodium": "1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sodium", verr.Field)
}

func TestPatchRequest_AcceptsNumbersStringsAndNull(t *testing.T) {
	var req PatchRequest
	body := `{"proteinPercent": 32, "price": "1,200", "fatPercent": null, "weightKg": ""}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	p, err := req.Parse()
	require.NoError(t, err)
	require.NotNil(t, p.ProteinPercent)
	require.NotNil(t, p.Price)
	assert.Equal(t, 32.0, *p.ProteinPercent)
	assert.Equal(t, 1200.0, *p.Price)
	assert.Nil(t, p.FatPercent)
	assert.Nil(t, p.WeightKg)
	assert.Nil(t, p.KcalPer100g)
}

func TestPatchRequest_EmptyBody(t *testing.T) {
	var req PatchRequest
	require.NoError(t, json.Unmarshal([]byte(`{}`), &req))
	p, err := req.Parse()
	require.NoError(t, err)
	assert.True(t, p.Empty())
}
