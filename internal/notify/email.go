package notify

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"os"
)

type smtpConfig struct {
	host string
	port string
	user string
	pass string
	from string
}

func loadSMTP() (*smtpConfig, error) {
	cfg := &smtpConfig{
		host: os.Getenv("SMTP_HOST"),
		port: os.Getenv("SMTP_PORT"),
		user: os.Getenv("SMTP_USER"),
		pass: os.Getenv("SMTP_PASS"),
		from: os.Getenv("SMTP_FROM"),
	}
	if cfg.host == "" || cfg.user == "" || cfg.pass == "" {
		return nil, fmt.Errorf("SMTP not configured")
	}
	if cfg.port == "" {
		cfg.port = "587"
	}
	if cfg.from == "" {
		cfg.from = cfg.user
	}
	return cfg, nil
}

// SendEmail delivers one plain-text message to a single recipient. Port 465
// speaks implicit TLS; every other port goes through STARTTLS.
func SendEmail(to, subject, body string) error {
	cfg, err := loadSMTP()
	if err != nil {
		return err
	}

	msg := []byte("From: \"HireLoop\" <" + cfg.from + ">\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		body + "\r\n")

	addr := cfg.host + ":" + cfg.port
	auth := smtp.PlainAuth("", cfg.user, cfg.pass, cfg.host)
	if cfg.port == "465" {
		return sendImplicitTLS(cfg, addr, auth, to, msg)
	}
	return smtp.SendMail(addr, auth, cfg.from, []string{to}, msg)
}

func sendImplicitTLS(cfg *smtpConfig, addr string, auth smtp.Auth, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.host})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, cfg.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Quit()

	if err := c.Auth(auth); err != nil {
		return err
	}
	if err := c.Mail(cfg.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	wc, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := wc.Write(msg); err != nil {
		return err
	}
	return wc.Close()
}
