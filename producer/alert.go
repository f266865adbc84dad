// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package producer

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

// Alerter raises alerts about the readout of a producer.
type Alerter interface {
	Alert(subject, body string) error
}

// MailAlerter sends alerts by mail.
type MailAlerter struct {
	Server   string
	Port     int
	User     string
	Password string
	To       []string

	send func(msg *mail.Message) error
}

// MailAlerterFromEnv returns a mail alerter configured from the
// MAIL_USERNAME, MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS
// environment variables.
func MailAlerterFromEnv() (*MailAlerter, error) {
	port, _ := strconv.Atoi(os.Getenv("MAIL_PORT"))
	alert := &MailAlerter{
		Server:   os.Getenv("MAIL_SERVER"),
		Port:     port,
		User:     os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
	}
	if tgts := os.Getenv("MAIL_TGTS"); tgts != "" {
		alert.To = strings.Split(tgts, ",")
	}
	if err := alert.check(); err != nil {
		return nil, err
	}
	return alert, nil
}

func (ma *MailAlerter) check() error {
	if ma.User == "" || ma.Password == "" ||
		ma.Server == "" || ma.Port == 0 || len(ma.To) == 0 {
		return fmt.Errorf("producer: missing mail alert credentials")
	}
	return nil
}

// Alert sends a mail with the provided subject and body.
func (ma *MailAlerter) Alert(subject, body string) error {
	if err := ma.check(); err != nil {
		return fmt.Errorf("producer: could not send mail alert: %w", err)
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", ma.User)
	msg.SetHeader("Bcc", ma.To...)
	msg.SetHeader("Subject", "[vx1742] "+subject)
	msg.SetBody("text/plain", body)

	send := ma.send
	if send == nil {
		send = func(msg *mail.Message) error {
			dial := mail.NewDialer(ma.Server, ma.Port, ma.User, ma.Password)
			dial.TLSConfig = &tls.Config{
				ServerName: ma.Server,
			}
			return dial.DialAndSend(msg)
		}
	}

	err := send(msg)
	if err != nil {
		return fmt.Errorf("producer: could not send mail alert: %w", err)
	}
	return nil
}
