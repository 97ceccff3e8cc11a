package mailer

import (
	"bnm_edu_backend/internal/config"
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer 邮件投递接口。调用方负责 fire-and-forget，失败只记录日志
type Mailer interface {
	Send(to, subject, body string) error
}

type SMTPMailer struct {
	cfg *config.MailConfig
}

func NewMailer(cfg *config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + m.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	return smtp.SendMail(addr, auth, m.cfg.Username, []string{to}, []byte(msg))
}

// ResetCodeMail 渲染重置密码邮件
func ResetCodeMail(username, code string) (subject, body string) {
	subject = "Your BNM EDU Reset Code"
	body = fmt.Sprintf(`Hello %s,

Your password reset code is: %s
This code is valid for 10 minutes.

If you did not request a reset, ignore this message.

- BNM EDU Support`, username, code)
	return subject, body
}

// TwoFactorMail 渲染2FA登录邮件
func TwoFactorMail(username, code string) (subject, body string) {
	subject = "Your BNM EDU 2FA Code"
	body = fmt.Sprintf(`Hello %s,

Your 2FA login code is: %s
It is valid for 10 minutes.

If this wasn't you, ignore this message.`, username, code)
	return subject, body
}
