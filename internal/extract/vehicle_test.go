package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVehicle_PlateTiers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"english label", "License Plate: ABC-1234", "ABC-1234"},
		{"english label fullwidth colon", "License Plate： XYZ-987", "XYZ-987"},
		{"chinese label", "車牌: ABC-1234", "ABC-1234"},
		{"chinese label fullwidth plate", "車牌：ＡＢＣ－１２３４", "ABC-1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractVehicle(tt.in, "")
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractVehicle_RentalCompanyTier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"city prefix wins", "Rental company: 台北大都會衛星車隊, Ltd.", "台北大都會衛星車隊"},
		{"comma cut", "Rental company: 高雄合作車行, registered operator", "高雄合作車行"},
		{"last token fallback", "Rental company: Acme Fleet TX-5566", "TX-5566"},
		{"single token", "Rental company: Uberfleet", "Uberfleet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractVehicle(tt.in, "")
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractVehicle_MarkupFallback(t *testing.T) {
	markup := `<html><body><p>Your driver</p><p>License Plate: DEF-5678</p></body></html>`
	got, ok := extractVehicle("no vehicle in plain body", markup)
	require.True(t, ok)
	assert.Equal(t, "DEF-5678", got)
}

func TestExtractVehicle_Missing(t *testing.T) {
	_, ok := extractVehicle("thanks for riding", "<p>nothing here either</p>")
	assert.False(t, ok)
}

func TestCleanRentalLine(t *testing.T) {
	assert.Equal(t, "台北大都會衛星車隊", cleanRentalLine("台北大都會衛星車隊、營業中"))
	assert.Equal(t, "", cleanRentalLine("   "))
}
