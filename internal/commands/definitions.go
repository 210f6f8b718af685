package commands

import "github.com/bwmarrin/discordgo"

func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:         "report",
			Description:  "Xuất báo cáo chi phí của bạn",
			DMPermission: boolPtr(true),
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "format",
					Description: "Định dạng báo cáo",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "Chi tiết", Value: "detailed"},
						{Name: "Tóm tắt", Value: "summary"},
					},
				},
			},
		},
		{
			Name:         "stats",
			Description:  "Xem thống kê phiên trò chuyện",
			DMPermission: boolPtr(true),
		},
		{
			Name:         "reset-memory",
			Description:  "Xóa lịch sử trò chuyện (giữ lại chi phí)",
			DMPermission: boolPtr(true),
		},
		{
			Name:         "reset-expenses",
			Description:  "Xóa toàn bộ chi phí đã ghi nhận",
			DMPermission: boolPtr(true),
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}
