// Package model 包含了应用的数据模型定义。
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role 表示一条消息的发送方角色。
type Role string

const (
	// RoleUser 用户发来的消息
	RoleUser Role = "user"
	// RoleAssistant 助手生成的回复
	RoleAssistant Role = "assistant"
	// RoleSystem 系统指令，仅在调用模型时临时合成，永不落库
	RoleSystem Role = "system"
)

// Message 代表对话中的单条消息。Timestamp 由存储层在追加时写入。
type Message struct {
	Role      Role      `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Conversation 代表一段持久化的对话：追加写的消息日志，插入顺序即对话轮次顺序。
type Conversation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Messages  []Message          `bson:"messages" json:"messages"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// ChatResult 是一次聊天编排的结果。
type ChatResult struct {
	Reply          string
	ConversationID string
}
