package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOffsetRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		in         OffsetRequest
		wantPage   int
		wantSize   int
		wantOffset int
	}{
		{"defaults", OffsetRequest{}, 1, PageDefaultSize, 0},
		{"second page", OffsetRequest{Page: 2, Size: 10}, 2, 10, 10},
		{"size capped", OffsetRequest{Page: 3, Size: 1000}, 3, PageMaxSize, 2 * PageMaxSize},
		{"negative", OffsetRequest{Page: -1, Size: -5}, 1, PageDefaultSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.in
			assert.NoError(t, req.Validate())
			assert.Equal(t, tt.wantPage, req.Page)
			assert.Equal(t, tt.wantSize, req.Size)
			assert.Equal(t, tt.wantOffset, req.Offset())
		})
	}
}

func TestNewOffsetResult(t *testing.T) {
	req := OffsetRequest{Page: 2, Size: 2}
	assert.True(t, NewOffsetResult([]int{3, 4}, 5, req).HasMore)
	assert.False(t, NewOffsetResult([]int{3, 4}, 4, req).HasMore)

	empty := NewOffsetResult[int](nil, 0, OffsetRequest{Page: 1, Size: 20})
	assert.NotNil(t, empty.Items)
	assert.False(t, empty.HasMore)
}
