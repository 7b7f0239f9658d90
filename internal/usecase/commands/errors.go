package commands

import "errors"

var (
	ErrUnknownWord      = errors.New("слово не отслеживается")
	ErrDuplicateWord    = errors.New("слово уже отслеживается")
	ErrPermissionDenied = errors.New("недостаточно прав")
	ErrMalformedCommand = errors.New("некорректные аргументы команды")
	ErrUnknownCommand   = errors.New("неизвестная команда")
	ErrUnknownUser      = errors.New("пользователь не найден")
)

// Error описывает ошибку команды с готовым ответом для пользователя.
type Error struct {
	Kind  error
	Reply string
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Reply
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func replyError(kind error, reply string) error {
	return &Error{Kind: kind, Reply: reply}
}

// ReplyFor возвращает текст ответа для ошибки команды.
// Для внутренних ошибок возвращается общий текст без подробностей.
func ReplyFor(err error) string {
	var cmdErr *Error
	if errors.As(err, &cmdErr) {
		return cmdErr.Reply
	}
	return "Error: something went wrong, try again later"
}
