// Package service contains background and outbound collaborators used by the
// API handlers
package service

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// MailSender is what the handlers program against so tests can swap in a
// recorder instead of a live SMTP dialer
type MailSender interface {
	SendVerificationMail(to, name, code string) error
	SendPasswordResetMail(to, resetLink string) error
	SendResetSuccessMail(to string) error
	SendWelcomeMail(to, name string) error
}

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer() *Mailer {
	from := viper.GetString("mail.sender")

	return &Mailer{
		from: from,
		dialer: gomail.NewDialer(
			viper.GetString("mail.host"),
			viper.GetInt("mail.port"),
			from,
			viper.GetString("mail.password"),
		),
	}
}

func (m *Mailer) send(to, subject, body string) error {
	if to == m.from {
		return errors.New("invalid email address")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	return m.dialer.DialAndSend(msg)
}

func (m *Mailer) SendVerificationMail(to, name, code string) error {
	return m.send(to, "Verify your email address",
		fmt.Sprintf("Hi %v,<br><br>Your verification code is <b>%v</b>.<br>It expires in 24 hours.", name, code))
}

func (m *Mailer) SendPasswordResetMail(to, resetLink string) error {
	return m.send(to, "Reset your password",
		fmt.Sprintf("Click <a href='%v'>here</a> to reset your password.<br><br>This link will expire in 1 hour. If you didn't request this you can ignore this mail.", resetLink))
}

func (m *Mailer) SendResetSuccessMail(to string) error {
	return m.send(to, "Your password was changed",
		"Your password has been reset successfully. If this wasn't you, contact support immediately.")
}

func (m *Mailer) SendWelcomeMail(to, name string) error {
	return m.send(to, "Welcome!",
		fmt.Sprintf("Hi %v,<br><br>Your email is verified and your account is ready to go.", name))
}

// SendAsync runs a mail send in the background. Mail is best-effort: the
// state change that triggered it is already persisted, so a delivery failure
// only gets logged and never bubbles up to the client
func SendAsync(what, requestID string, fn func() error) {
	go func() {
		if err := fn(); err != nil {
			zap.L().Error("Failed to send "+what+" mail",
				zap.Error(err),
				zap.String("requestID", requestID),
			)
		}
	}()
}
