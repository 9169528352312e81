package handlers

import "PRelay/service/chat"

// RegisterAll 注册全部入站事件
func RegisterAll(d *chat.Dispatcher) {
	d.Register(NewRegisterHandler())
	d.Register(NewLoadMessagesHandler())
	d.Register(NewPrivateMessageHandler())
}
