package csgt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	testCases := []struct {
		in   string
		want Category
	}{
		{"car", CategoryCar},
		{"oto", CategoryCar},
		{"Car", CategoryCar},
		{" xemay ", CategoryMotorcycle},
		{"motorcycle", CategoryMotorcycle},
		{"electric_bike", CategoryElectricBike},
		{"electric-bike", CategoryElectricBike},
		{"xedapdien", CategoryElectricBike},
		{"xe day dien", 0},
	}
	for _, test := range testCases {
		got, err := ParseCategory(test.in)
		if test.want == 0 {
			require.Error(t, err, "input %q", test.in)
			continue
		}
		require.NoError(t, err, "input %q", test.in)
		require.Equal(t, test.want, got, "input %q", test.in)
	}
}

func TestCategoryFormValue(t *testing.T) {
	require.Equal(t, "1", CategoryCar.FormValue())
	require.Equal(t, "2", CategoryMotorcycle.FormValue())
	require.Equal(t, "3", CategoryElectricBike.FormValue())
}

func TestQueryNormalizedPlate(t *testing.T) {
	q := Query{Plate: " 30a12345 ", Category: CategoryCar}
	require.Equal(t, "30A12345", q.NormalizedPlate())
}
