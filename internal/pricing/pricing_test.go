package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinePrice(t *testing.T) {
	tests := []struct {
		name     string
		base     int64
		modifier int64
		want     int64
		wantErr  bool
	}{
		{name: "standard seat", base: 1200, modifier: 0, want: 1200},
		{name: "vip surcharge", base: 1200, modifier: 500, want: 1700},
		{name: "discounted seat", base: 1200, modifier: -200, want: 1000},
		{name: "free seat rejected", base: 1200, modifier: -1200, wantErr: true},
		{name: "negative base rejected", base: -1, modifier: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LinePrice(tt.base, tt.modifier)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNonPositivePrice)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotal(t *testing.T) {
	assert.Equal(t, int64(0), Total(nil))
	assert.Equal(t, int64(2900), Total([]Line{{SeatID: 1, PriceCents: 1200}, {SeatID: 2, PriceCents: 1700}}))
}
