package csgt

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"platecheck/lib/htmlutil"
)

// labelTable maps each extractable field to the label text preceding
// its value on the result page. The page renders each pair as a
// <label><span>…</span></label> followed by a div.col-md-9 value
// container; one generic sibling lookup interprets the whole table.
var labelTable = []struct {
	Field Field
	Label string
}{
	{FieldPlate, "Biển kiểm soát:"},
	{FieldColor, "Màu biển:"},
	{FieldCategory, "Loại phương tiện:"},
	{FieldTime, "Thời gian vi phạm"},
	{FieldLocation, "Địa điểm vi phạm:"},
	{FieldBehavior, "Hành vi vi phạm:"},
	{FieldPaymentStatus, "Trạng thái"},
	{FieldDetectingUnit, "Đơn vị phát hiện vi phạm:"},
	{FieldResolutionLocation, "Nơi giải quyết vụ việc:"},
}

// markers whose presence means the lookup legitimately found nothing
var noResultMarkers = []string{
	"không tìm thấy kết quả",
	"no results",
}

const (
	labelSelector = "label"
	valueSelector = "div.col-md-9"
)

// ExtractRecord pulls the known fields out of a result page.
//
// A page carrying a no-results marker short-circuits to an empty
// successful record. A page where no label matched and no marker is
// present keeps the whole body as RawMarkup and downgrades to
// StatusPartial so the label table can be fixed without rerunning
// the lookup.
func ExtractRecord(page string) (ViolationRecord, Status) {
	lower := strings.ToLower(page)
	for _, marker := range noResultMarkers {
		if strings.Contains(lower, marker) {
			return ViolationRecord{Found: false}, StatusSuccess
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ViolationRecord{Found: false, RawMarkup: page}, StatusPartial
	}

	fields := map[Field]string{}
	for _, entry := range labelTable {
		value := htmlutil.FindLabelValue(doc, labelSelector, entry.Label, valueSelector)
		if value != "" {
			fields[entry.Field] = value
		}
	}

	if len(fields) == 0 {
		return ViolationRecord{Found: false, RawMarkup: page}, StatusPartial
	}
	return ViolationRecord{Found: true, Fields: fields}, StatusSuccess
}
