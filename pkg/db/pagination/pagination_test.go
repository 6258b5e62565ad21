package pagination

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	require.Equal(t, DefaultLimit, Clamp(0))
	require.Equal(t, DefaultLimit, Clamp(-3))
	require.Equal(t, 1, Clamp(1))
	require.Equal(t, MaxLimit, Clamp(MaxLimit))
	require.Equal(t, MaxLimit, Clamp(MaxLimit+1))
	require.Equal(t, 10, Pagination{Limit: 10}.Size())
}
