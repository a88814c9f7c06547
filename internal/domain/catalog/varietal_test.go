package catalog

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
)

func TestParseVarietalShare(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    VarietalShare
		wantErr bool
	}{
		{name: "plain", in: "3:40", want: VarietalShare{VarietalID: 3, Percentage: decimal.NewFromInt(40)}},
		{name: "fraction", in: " 12:12.5 ", want: VarietalShare{VarietalID: 12, Percentage: decimal.RequireFromString("12.5")}},
		{name: "no delimiter", in: "340", wantErr: true},
		{name: "non numeric id", in: "merlot:40", wantErr: true},
		{name: "zero percent", in: "3:0", wantErr: true},
		{name: "over hundred", in: "3:100.01", wantErr: true},
		{name: "extra delimiter", in: "3:4:5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVarietalShare(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperror.IsAppError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.VarietalID, got.VarietalID)
			assert.True(t, tt.want.Percentage.Equal(got.Percentage))
		})
	}
}

func TestValidateShares(t *testing.T) {
	share := func(v id.ID, p string) VarietalShare {
		return VarietalShare{VarietalID: v, Percentage: decimal.RequireFromString(p)}
	}

	assert.NoError(t, ValidateShares(nil))
	assert.NoError(t, ValidateShares([]VarietalShare{share(1, "60"), share(2, "40")}))
	assert.Error(t, ValidateShares([]VarietalShare{share(1, "60"), share(1, "10")}), "duplicate varietal")
	assert.Error(t, ValidateShares([]VarietalShare{share(1, "60"), share(2, "40.5")}), "total above 100")
}

func TestVarietalShare_JSONIsStructured(t *testing.T) {
	b, err := json.Marshal(VarietalShare{VarietalID: 7, Percentage: decimal.NewFromInt(55)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"varietal_id":7,"percentage":"55"}`, string(b))
}

func TestVarietalShare_UnmarshalJSON(t *testing.T) {
	var shares []VarietalShare
	require.NoError(t, json.Unmarshal([]byte(`[
		{"varietal_id": 7, "percentage": 60},
		{"varietal_id": 8, "percentage": "25.5"},
		"9:14.5"
	]`), &shares))

	require.Len(t, shares, 3)
	assert.Equal(t, id.ID(7), shares[0].VarietalID)
	assert.True(t, decimal.NewFromInt(60).Equal(shares[0].Percentage))
	assert.True(t, decimal.RequireFromString("25.5").Equal(shares[1].Percentage))
	assert.Equal(t, id.ID(9), shares[2].VarietalID)
	assert.True(t, decimal.RequireFromString("14.5").Equal(shares[2].Percentage))

	var share VarietalShare
	assert.Error(t, json.Unmarshal([]byte(`"merlot:40"`), &share))
	assert.Error(t, json.Unmarshal([]byte(`"7"`), &share))
}

func TestDrink_DecodesLegacyVarietals(t *testing.T) {
	var d Drink
	require.NoError(t, json.Unmarshal([]byte(`{"id": 3, "title": "Chianti", "varietals": ["7:60", "8:40"]}`), &d))

	require.Len(t, d.Varietals, 2)
	assert.Equal(t, id.ID(8), d.Varietals[1].VarietalID)
	assert.NoError(t, ValidateShares(d.Varietals))
}
