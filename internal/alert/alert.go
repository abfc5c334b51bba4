// Copyright 2024 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alert sends mail alerts to the shifters.
package alert // import "github.com/go-lpc/tof/internal/alert"

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

// Mailer sends alerts by mail.
type Mailer struct {
	Server   string
	Port     int
	User     string
	Password string
	Targets  []string
	Tag      string // prepended to the subject of alerts
}

// FromEnv creates a mailer configured from the MAIL_USERNAME,
// MAIL_PASSWORD, MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment
// variables.
func FromEnv(tag string) Mailer {
	m := Mailer{
		Server:   os.Getenv("MAIL_SERVER"),
		User:     os.Getenv("MAIL_USERNAME"),
		Password: os.Getenv("MAIL_PASSWORD"),
		Tag:      tag,
	}
	m.Port, _ = strconv.Atoi(os.Getenv("MAIL_PORT"))
	for _, tgt := range strings.Split(os.Getenv("MAIL_TGTS"), ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		m.Targets = append(m.Targets, tgt)
	}
	return m
}

// Valid reports whether the mailer has all the needed credentials.
func (m Mailer) Valid() bool {
	return m.User != "" && m.Password != "" &&
		m.Server != "" && m.Port != 0 &&
		len(m.Targets) != 0
}

func (m Mailer) message(subject, body string) *mail.Message {
	msg := mail.NewMessage()
	msg.SetHeader("From", m.User)
	msg.SetHeader("Bcc", m.Targets...)
	msg.SetHeader("Subject", fmt.Sprintf("[%s] %s", m.Tag, subject))
	msg.SetBody("text/plain", body)
	return msg
}

// Alert sends an alert mail.
func (m Mailer) Alert(subject, body string) error {
	if !m.Valid() {
		return fmt.Errorf("alert: could not send mail alert: missing credentials")
	}

	dial := mail.NewDialer(m.Server, m.Port, m.User, m.Password)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(m.message(subject, body))
	if err != nil {
		return fmt.Errorf("alert: could not send mail alert: %w", err)
	}
	return nil
}
