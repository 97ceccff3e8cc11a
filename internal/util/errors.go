package util

import "errors"

var (
	ErrAccountNotFound   = errors.New("user not found")
	ErrAnswerNotFound    = errors.New("answer not found")
	ErrUserExists        = errors.New("user already exists")
	ErrEmailTaken        = errors.New("new email is already in use")
	ErrIncorrectPassword = errors.New("incorrect password")

	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// 一次性验证码（2FA / 重置密码）
	ErrCodeNotSet     = errors.New("code not set")
	ErrCodeExpired    = errors.New("code expired")
	ErrCodeMismatch   = errors.New("invalid code")
	ErrCodeStillValid = errors.New("a code was already sent, wait before requesting another")

	ErrTwoFactorDisabled = errors.New("2FA is not enabled")
	ErrLessonCompleted   = errors.New("lesson already completed")
)
