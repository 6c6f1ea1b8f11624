package chat

import (
	"fmt"
	"strings"
)

// 协议中出现的固定文本。
const (
	// PromptNickname 在连接建立后发送，不以换行结尾。
	PromptNickname = "Enter your nickname: "

	// ReplyNicknameRejected 在昵称为空或已被占用时发送，随后连接被关闭。
	ReplyNicknameRejected = "Nickname is invalid or already taken. Try again."

	// ReplyInvalidPrivate 在 PRIVATE 内容缺少分隔符时发送。
	ReplyInvalidPrivate = "Invalid private message format. Use: PRIVATE:recipient:message"

	// ServerSender 是加入、离开通知使用的发送方名称。
	ServerSender = "Server"
)

// 命令类型。
const (
	TypeBroadcast = "BROADCAST"
	TypePrivate   = "PRIVATE"
	TypeList      = "LIST"
)

func formatBroadcast(sender, text string) string {
	return sender + " (to all): " + text
}

func formatPrivate(sender, text string) string {
	return sender + " (private): " + text
}

func formatUserList(names []string) string {
	return "Connected users: " + strings.Join(names, ", ")
}

func formatUserNotFound(name string) string {
	return fmt.Sprintf("User %s not found.", name)
}

func joinedNotice(name string) string {
	return name + " joined the chat."
}

func leftNotice(name string) string {
	return name + " left the chat."
}
