package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNearestCategory(t *testing.T) {
	require.Equal(t, "car", nearestCategory("carr"))
	require.Equal(t, "motorcycle", nearestCategory("motorcicle"))
	require.Equal(t, "xemay", nearestCategory("xema"))
	require.Equal(t, "", nearestCategory("zzzzzz"))
}
