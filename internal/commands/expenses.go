package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/susu3304/expensebot/internal/assistant"
	"github.com/susu3304/expensebot/internal/reimburse"
)

const commandTimeout = 15 * time.Second

const failureText = "Không thể xử lý yêu cầu. Vui lòng thử lại sau."

func logger() *slog.Logger {
	return slog.Default().With("component", "commands")
}

// withSession resolves the caller's session and runs fn. Failures are
// reported back to the user.
func withSession(s *discordgo.Session, i *discordgo.InteractionCreate, sessions SessionResolver, fn func(ctx context.Context, sessionID string) (string, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	userID := InteractionUserID(i)
	if userID == "" {
		respond(s, i, failureText, true)
		return
	}
	sessionID, err := sessions.Resolve(ctx, userID)
	if err != nil {
		logger().Error("failed to resolve session", "user", userID, "error", err)
		respond(s, i, failureText, true)
		return
	}

	content, err := fn(ctx, sessionID)
	if err != nil {
		logger().Error("command failed", "command", i.ApplicationCommandData().Name, "user", userID, "error", err)
		msg := failureText
		if errors.Is(err, reimburse.ErrInvalidFormat) {
			msg = "Định dạng báo cáo không hợp lệ."
		}
		respond(s, i, msg, true)
		return
	}
	if err := respond(s, i, content, false); err != nil {
		logger().Error("failed to respond", "error", err)
	}
}

func HandleReport(s *discordgo.Session, i *discordgo.InteractionCreate, svc *assistant.Service, sessions SessionResolver) {
	format := stringOption(i.ApplicationCommandData(), "format")
	withSession(s, i, sessions, func(ctx context.Context, sessionID string) (string, error) {
		resp, err := svc.Report(ctx, sessionID, format)
		if err != nil {
			return "", err
		}
		return resp.ResponseText, nil
	})
}

func HandleStats(s *discordgo.Session, i *discordgo.InteractionCreate, svc *assistant.Service, sessions SessionResolver) {
	withSession(s, i, sessions, func(ctx context.Context, sessionID string) (string, error) {
		stats, err := svc.Stats(sessionID)
		if err != nil {
			return "", err
		}
		return formatStats(stats), nil
	})
}

func HandleResetMemory(s *discordgo.Session, i *discordgo.InteractionCreate, svc *assistant.Service, sessions SessionResolver) {
	withSession(s, i, sessions, func(ctx context.Context, sessionID string) (string, error) {
		if err := svc.ResetMemory(ctx, sessionID); err != nil {
			return "", err
		}
		return "Đã xóa lịch sử trò chuyện. Các chi phí đã ghi nhận vẫn được giữ lại.", nil
	})
}

func HandleResetExpenses(s *discordgo.Session, i *discordgo.InteractionCreate, svc *assistant.Service, sessions SessionResolver) {
	withSession(s, i, sessions, func(ctx context.Context, sessionID string) (string, error) {
		if err := svc.ResetExpenses(ctx, sessionID); err != nil {
			return "", err
		}
		return "Đã xóa toàn bộ chi phí đã ghi nhận.", nil
	})
}

func formatStats(st *assistant.SessionStats) string {
	var sb strings.Builder
	sb.WriteString("📊 THỐNG KÊ PHIÊN\n")
	fmt.Fprintf(&sb, "Tin nhắn: %d\n", st.MessageCount)
	fmt.Fprintf(&sb, "Tin nhắn đang giữ: %d\n", st.ActiveTurns)
	fmt.Fprintf(&sb, "Bản tóm tắt: %d\n", st.Summaries)
	fmt.Fprintf(&sb, "Token tiết kiệm: %d (tỉ lệ %s)\n", st.TokensSaved, st.EfficiencyRatio)
	fmt.Fprintf(&sb, "Chi phí: %d khoản, tổng %s", st.ExpenseCount, reimburse.FormatVND(st.TotalAmount))
	if st.Degraded {
		sb.WriteString("\n⚠️ Dữ liệu chưa được lưu, hệ thống sẽ thử lại.")
	}
	return sb.String()
}
