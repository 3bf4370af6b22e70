package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	mail "gopkg.in/mail.v2"
)

type DeliveryError struct {
	To  string
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver mail to %s: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Dialer is satisfied by *mail.Dialer.
type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type Mailer struct {
	From   string
	Dialer Dialer
}

func New(host string, port int, user, pass, from string) *Mailer {
	return &Mailer{From: from, Dialer: mail.NewDialer(host, port, user, pass)}
}

var invoiceBody = template.Must(template.New("invoice").Parse(
	`<p>Thank you for shopping at G Mart.</p><p>Your invoice for order <b>{{.}}</b> is attached.</p>`))

var otpBody = template.Must(template.New("otp").Parse(
	`<p>Your G Mart sign-in code is</p><h2>{{.}}</h2><p>It expires in a few minutes.</p>`))

func (m *Mailer) InvoiceMessage(to, orderID string, pdf []byte) (*mail.Message, error) {
	var body bytes.Buffer
	if err := invoiceBody.Execute(&body, orderID); err != nil {
		return nil, err
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your G Mart invoice "+orderID)
	msg.SetBody("text/html", body.String())
	msg.AttachReader(orderID+".pdf", bytes.NewReader(pdf),
		mail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}))
	return msg, nil
}

func (m *Mailer) OTPMessage(to, code string) (*mail.Message, error) {
	var body bytes.Buffer
	if err := otpBody.Execute(&body, code); err != nil {
		return nil, err
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", m.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Your G Mart sign-in code")
	msg.SetBody("text/html", body.String())
	return msg, nil
}

func (m *Mailer) SendInvoice(ctx context.Context, to, orderID string, pdf []byte) error {
	msg, err := m.InvoiceMessage(to, orderID, pdf)
	if err != nil {
		return &DeliveryError{To: to, Err: err}
	}
	return m.send(ctx, to, msg)
}

func (m *Mailer) SendOTP(ctx context.Context, to, code string) error {
	msg, err := m.OTPMessage(to, code)
	if err != nil {
		return &DeliveryError{To: to, Err: err}
	}
	return m.send(ctx, to, msg)
}

func (m *Mailer) send(ctx context.Context, to string, msg *mail.Message) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{To: to, Err: err}
	}
	if err := m.Dialer.DialAndSend(msg); err != nil {
		return &DeliveryError{To: to, Err: err}
	}
	return nil
}
