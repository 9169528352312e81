package model

import "time"

const (
	// ReceiverAll 广播目标：所有在线连接（包含发送者）
	ReceiverAll = "all"
	// SelfLabel 回显给发送者时替换的 sender
	SelfLabel = "You"

	MsgTableName = "messages" // 集合名/表名
)

// Message 一条私信，创建后不可变
type Message struct {
	ID        string    `bson:"_id" json:"id"`
	Sender    string    `bson:"sender" json:"sender"`
	Receiver  string    `bson:"receiver" json:"receiver"` // 用户名或 "all"
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Involves 用户是否是这条消息的参与方
func (m *Message) Involves(username string) bool {
	return m.Sender == username || m.Receiver == username
}

// Echo 发送者视角的副本
func (m Message) Echo() Message {
	m.Sender = SelfLabel
	return m
}

// Before 时间升序，时间相同按 ID
func (m *Message) Before(o *Message) bool {
	if m.Timestamp.Equal(o.Timestamp) {
		return m.ID < o.ID
	}
	return m.Timestamp.Before(o.Timestamp)
}
