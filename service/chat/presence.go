package chat

// 所有 presence 帧共用一个 fanout key，保证每个接收方看到的顺序与发生顺序一致
const presenceFanoutKey = "presence"

func JoinedText(username string) string { return username + " has joined the chat" }
func LeftText(username string) string   { return username + " has left the chat" }

// Presence 上下线通知与坐席用户列表推送。
// 快照与入队必须在同一临界区内完成（由 Lifecycle.seq 保证），否则旧快照可能晚于新快照入队。
type Presence struct {
	conns  *ConnManager
	reg    *Registry
	fanout *Fanout
}

func NewPresence(conns *ConnManager, reg *Registry, fanout *Fanout) *Presence {
	return &Presence{conns: conns, reg: reg, fanout: fanout}
}

// Connected 通知除 s 以外的所有连接
func (p *Presence) Connected(s *Session, username string) {
	p.conns.BroadcastExcept(presenceFanoutKey, s, mustFrame(EventUserConnected, JoinedText(username)))
}

// Disconnected 通知剩余的所有连接（调用前已从 ConnManager 移除）
func (p *Presence) Disconnected(username string) {
	p.conns.BroadcastExcept(presenceFanoutKey, nil, mustFrame(EventUserDisconnected, LeftText(username)))
}

// PushUserList 把最新的普通用户列表推给每个在线坐席
func (p *Presence) PushUserList() {
	agents := p.reg.AgentSessions()
	if len(agents) == 0 {
		return
	}
	p.fanout.Broadcast(presenceFanoutKey, agents, mustFrame(EventUpdateUserList, p.reg.Usernames(RolePlainUser)))
}
