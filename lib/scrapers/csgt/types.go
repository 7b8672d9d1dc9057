package csgt

import (
	"fmt"
	"strings"
)

// Category is the vehicle class the lookup form distinguishes. The
// numeric values are the form's own encoding.
type Category int

const (
	CategoryCar          Category = 1
	CategoryMotorcycle   Category = 2
	CategoryElectricBike Category = 3
)

func (c Category) String() string {
	switch c {
	case CategoryCar:
		return "car"
	case CategoryMotorcycle:
		return "motorcycle"
	case CategoryElectricBike:
		return "electric_bike"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// FormValue is the value submitted in the Xe form field.
func (c Category) FormValue() string {
	return fmt.Sprintf("%d", int(c))
}

// both the english names and the site's vietnamese shorthand are accepted
var categoryAliases = map[string]Category{
	"car":           CategoryCar,
	"oto":           CategoryCar,
	"motorcycle":    CategoryMotorcycle,
	"xemay":         CategoryMotorcycle,
	"electric_bike": CategoryElectricBike,
	"electricbike":  CategoryElectricBike,
	"xedapdien":     CategoryElectricBike,
}

func ParseCategory(s string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "")
	if c, ok := categoryAliases[normalized]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("unknown vehicle category: %q", s)
}

// CategoryNames lists the canonical names, for error messages and
// input suggestions.
func CategoryNames() []string {
	return []string{"car", "motorcycle", "electric_bike", "oto", "xemay", "xedapdien"}
}

// Query identifies one lookup. Immutable once a run starts.
type Query struct {
	Plate    string   `json:"plate"`
	Category Category `json:"category"`
}

// NormalizedPlate is the uppercased, trimmed identifier actually
// submitted.
func (q Query) NormalizedPlate() string {
	return strings.ToUpper(strings.TrimSpace(q.Plate))
}

// Field names one extractable value on the result page.
type Field string

const (
	FieldPlate              Field = "plate"
	FieldColor              Field = "color"
	FieldCategory           Field = "category"
	FieldTime               Field = "time"
	FieldLocation           Field = "location"
	FieldBehavior           Field = "behavior"
	FieldPaymentStatus      Field = "payment_status"
	FieldDetectingUnit      Field = "detecting_unit"
	FieldResolutionLocation Field = "resolution_location"
)

// ViolationRecord is what a finished run knows about the plate.
// RawMarkup is only retained when structural extraction produced no
// fields, so the page layout can be inspected after the fact; it is
// never populated together with Fields.
type ViolationRecord struct {
	Found     bool             `json:"found"`
	Fields    map[Field]string `json:"fields,omitempty"`
	RawMarkup string           `json:"raw_markup,omitempty"`
}

// Status classifies a terminal workflow outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// Result is the terminal outcome handed to the job collaborator.
// Attempts counts rejected challenge cycles, not network retries.
type Result struct {
	Query       Query            `json:"query"`
	Record      *ViolationRecord `json:"record,omitempty"`
	Status      Status           `json:"status"`
	ErrorDetail string           `json:"error_detail,omitempty"`
	Attempts    int              `json:"attempts"`
}
