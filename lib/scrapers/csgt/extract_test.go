package csgt

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var fullLabelValues = map[Field]string{
	FieldPlate:              "30A-123.45",
	FieldColor:              "Trắng",
	FieldCategory:           "Ô tô",
	FieldTime:               "10:15, 12/10/2025",
	FieldLocation:           "Nguyễn Trãi - Thanh Xuân - Hà Nội",
	FieldBehavior:           "Điều khiển xe chạy quá tốc độ quy định",
	FieldPaymentStatus:      "Chưa xử phạt",
	FieldDetectingUnit:      "Đội CSGT số 7",
	FieldResolutionLocation: "Công an quận Thanh Xuân",
}

func fullViolationPage() string {
	page := `<!DOCTYPE html><html><body><div class="xe_texts">`
	for _, entry := range labelTable {
		page += fmt.Sprintf(
			`<div class="form-group"><label><span>%s</span></label><div class="col-md-9">%s</div></div>`,
			entry.Label, fullLabelValues[entry.Field],
		)
	}
	page += `</div></body></html>`
	return page
}

func TestExtractRecordAllFields(t *testing.T) {
	record, status := ExtractRecord(fullViolationPage())
	require.Equal(t, StatusSuccess, status)
	require.True(t, record.Found)
	require.Empty(t, record.RawMarkup)
	require.Equal(t, fullLabelValues, record.Fields)
}

func TestExtractRecordPartialFields(t *testing.T) {
	page := `<html><body>
		<label><span>Biển kiểm soát:</span></label><div class="col-md-9">59C1-360.47</div>
		<label><span>Trạng thái</span></label><div class="col-md-9"><span class="badge">Đã xử phạt</span></div>
	</body></html>`
	record, status := ExtractRecord(page)
	require.Equal(t, StatusSuccess, status)
	require.True(t, record.Found)
	require.Equal(t, map[Field]string{
		FieldPlate:         "59C1-360.47",
		FieldPaymentStatus: "Đã xử phạt",
	}, record.Fields)
}

func TestExtractRecordNoResultsMarker(t *testing.T) {
	testCases := []string{
		`<html><body><p>Không tìm thấy kết quả</p></body></html>`,
		`<html><body><p>KHÔNG TÌM THẤY KẾT QUẢ</p></body></html>`,
		`<html><body>No Results found for this plate</body></html>`,
		// the marker wins even when labels are also present
		`<html><body><p>không tìm thấy kết quả</p>
			<label><span>Biển kiểm soát:</span></label><div class="col-md-9">30A-123.45</div>
		</body></html>`,
	}
	for _, page := range testCases {
		record, status := ExtractRecord(page)
		require.Equal(t, StatusSuccess, status)
		require.False(t, record.Found)
		require.Empty(t, record.Fields)
		require.Empty(t, record.RawMarkup)
	}
}

func TestExtractRecordUnrecognizedLayout(t *testing.T) {
	page := `<html><body><table><tr><td>layout changed entirely</td></tr></table></body></html>`
	record, status := ExtractRecord(page)
	require.Equal(t, StatusPartial, status)
	require.False(t, record.Found)
	require.Empty(t, record.Fields)
	require.Equal(t, page, record.RawMarkup)
}
