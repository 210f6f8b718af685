package assistant

import (
	"fmt"
	"strings"

	"github.com/susu3304/expensebot/internal/expense"
	"github.com/susu3304/expensebot/internal/reimburse"
)

var reportKeywords = []string{
	"báo cáo", "report", "tổng hợp", "summary",
	"tổng chi phí", "total expense", "chi phí tổng",
	"thống kê", "thong ke",
}

// IsReportRequest reports whether the message asks for an expense report.
func IsReportRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range reportKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// SystemPrompt describes the assistant role and the active policy.
func SystemPrompt(p reimburse.Policy) string {
	var sb strings.Builder
	sb.WriteString("Bạn là Trợ Lý Báo Cáo Chi Phí của công ty. Bạn giúp nhân viên kê khai chi phí, trả lời câu hỏi chính sách và giải thích số tiền được hoàn trả.\n\n")
	sb.WriteString("CHÍNH SÁCH CHI PHÍ:\n")
	fmt.Fprintf(&sb, "- Cần hóa đơn cho chi phí trên %s\n", reimburse.FormatVND(p.ReceiptThreshold))
	for _, c := range expense.Categories {
		if limit, ok := p.DailyCaps[c]; ok && limit > 0 {
			fmt.Fprintf(&sb, "- %s: tối đa %s/ngày\n", c.Label(), reimburse.FormatVND(limit))
		}
	}
	fmt.Fprintf(&sb, "- Lưu trú: tối đa %s/đêm\n", reimburse.FormatVND(p.AccommodationNightlyLimit))
	fmt.Fprintf(&sb, "- Văn phòng phẩm: tối đa %s/tháng\n", reimburse.FormatVND(p.OfficeMonthlyLimit))
	fmt.Fprintf(&sb, "- Chi phí từ %s cần phê duyệt\n", reimburse.FormatVND(p.ApprovalThreshold))
	fmt.Fprintf(&sb, "- Nộp báo cáo trong vòng %d ngày\n\n", p.SubmissionDeadlineDays)
	sb.WriteString("Chi phí do hệ thống ghi nhận sẽ được liệt kê trong ngữ cảnh; đừng tự bịa thêm khoản nào. Trả lời ngắn gọn, thân thiện, bằng tiếng Việt.")
	return sb.String()
}

// acknowledgement is the local reply used when the model is unavailable.
func acknowledgement(captured []expense.Expense) string {
	if len(captured) == 0 {
		return "Tôi chưa tìm thấy khoản chi phí nào trong tin nhắn. Bạn có thể ghi rõ số tiền, ví dụ: \"Ăn trưa 150k, taxi 50k\"."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Đã ghi nhận %d khoản chi phí:", len(captured))
	for _, e := range captured {
		fmt.Fprintf(&sb, "\n• %s: %s (%s)", e.Category.Label(), reimburse.FormatVND(e.Amount), e.DateKey())
	}
	return sb.String()
}

func capturedNote(captured []expense.Expense) string {
	var sb strings.Builder
	sb.WriteString("Chi phí vừa được hệ thống ghi nhận từ tin nhắn này:")
	for _, e := range captured {
		fmt.Fprintf(&sb, "\n- %s %s, %s", e.Category, reimburse.FormatVND(e.Amount), e.DateKey())
	}
	return sb.String()
}
