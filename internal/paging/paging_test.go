package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	cases := []struct {
		name                 string
		total, size, request int
		want                 Window
	}{
		{"first page", 120, 50, 1, Window{Page: 1, TotalPages: 3, Offset: 0, Limit: 50}},
		{"last partial page", 120, 50, 3, Window{Page: 3, TotalPages: 3, Offset: 100, Limit: 50}},
		{"exact multiple", 100, 50, 2, Window{Page: 2, TotalPages: 2, Offset: 50, Limit: 50}},
		{"zero clamps to first", 120, 50, 0, Window{Page: 1, TotalPages: 3, Offset: 0, Limit: 50}},
		{"negative clamps to first", 120, 50, -4, Window{Page: 1, TotalPages: 3, Offset: 0, Limit: 50}},
		{"beyond last clamps to last", 120, 50, 99, Window{Page: 3, TotalPages: 3, Offset: 100, Limit: 50}},
		{"no items", 0, 50, 5, Window{Page: 1, TotalPages: 0, Offset: 0, Limit: 50}},
		{"single item", 1, 50, 1, Window{Page: 1, TotalPages: 1, Offset: 0, Limit: 50}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compute(tc.total, tc.size, tc.request)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestComputeInvariants(t *testing.T) {
	for total := 0; total <= 130; total += 7 {
		for request := -2; request <= 6; request++ {
			w, err := Compute(total, 25, request)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, w.Page, 1)
			assert.LessOrEqual(t, w.Page, max(w.TotalPages, 1))
			if total > 0 {
				assert.Less(t, w.Offset, total)
			}
		}
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	_, err := Compute(10, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidPageSize)

	_, err = Compute(-1, 50, 1)
	assert.ErrorIs(t, err, ErrNegativeTotal)
}
