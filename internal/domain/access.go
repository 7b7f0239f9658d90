package domain

// AccessLevel описывает уровень привилегий для команд бота.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessServerManager
	AccessRoot
)

func (l AccessLevel) String() string {
	switch l {
	case AccessNone:
		return "none"
	case AccessServerManager:
		return "server_manager"
	case AccessRoot:
		return "root"
	default:
		return "unknown"
	}
}

// Allows сообщает, достаточно ли уровня l для команды с минимальным уровнем required.
func (l AccessLevel) Allows(required AccessLevel) bool {
	return l >= required
}
