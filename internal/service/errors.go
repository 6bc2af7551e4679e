package service

import (
	"errors"
	"fmt"
)

// Виды ошибок бизнес-слоя. Транспорт сопоставляет их со статусами HTTP.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream failure")
	ErrPersistence  = errors.New("persistence failure")
)

// Уточнённые ошибки валидации
var (
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrValidation)
	ErrAlreadyReviewed   = fmt.Errorf("%w: product already reviewed", ErrValidation)
	ErrInvalidTransition = fmt.Errorf("%w: invalid status transition", ErrValidation)
)

// Error ошибка с сообщением для клиента. Kind - один из видов выше.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Message возвращает сообщение для клиента: текст *Error или msg по умолчанию
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return fallback
}
