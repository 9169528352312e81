package errs

// 通用错误码
const (
	ServerInternalError = 500
	ArgsError           = 1000
)

// relay 会话/路由错误码
const (
	DuplicateRegistrationError = 1001 // username already bound to a live connection
	NotRegisteredError         = 1002 // event needs a bound identity
	InvalidUsernameError       = 1003
	AlreadyRegisteredError     = 1004 // connection already carries a username
	SessionClosedError         = 1005
	InvalidReceiverError       = 1006
	BadFrameError              = 1007
	UnknownEventError          = 1008
)

// 存储错误码
const (
	StoreError       = 2001
	StoreConfigError = 2002
)

var (
	ErrInternalServer = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")

	ErrDuplicateRegistration = NewCodeError(DuplicateRegistrationError, "username already active")
	ErrNotRegistered         = NewCodeError(NotRegisteredError, "connection not registered")
	ErrInvalidUsername       = NewCodeError(InvalidUsernameError, "invalid username")
	ErrAlreadyRegistered     = NewCodeError(AlreadyRegisteredError, "connection already registered")
	ErrSessionClosed         = NewCodeError(SessionClosedError, "connection closed")
	ErrInvalidReceiver       = NewCodeError(InvalidReceiverError, "invalid receiver")
	ErrBadFrame              = NewCodeError(BadFrameError, "malformed frame")
	ErrUnknownEvent          = NewCodeError(UnknownEventError, "unknown event")

	ErrStore       = NewCodeError(StoreError, "history store failure")
	ErrStoreConfig = NewCodeError(StoreConfigError, "history store misconfigured")
)

func init() {
	// argument errors are all children of ArgsError
	_ = DefaultCodeRelation.Add(ArgsError, InvalidUsernameError)
	_ = DefaultCodeRelation.Add(ArgsError, InvalidReceiverError)
	_ = DefaultCodeRelation.Add(ArgsError, BadFrameError)
}
