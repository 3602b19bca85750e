package services

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"
	"sync"

	"thoughts/internal/config"
	"thoughts/web"
)

const excerptRunes = 140

type MailService struct {
	cfg      config.SMTPConfig
	siteURL  string
	Enabled  bool
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

	tmplOnce sync.Once
	tmpl     *template.Template
	tmplErr  error

	wg sync.WaitGroup
}

func NewMailService(cfg config.SMTPConfig, siteURL string) *MailService {
	enabled := cfg.Enabled()
	if !enabled {
		log.Println("[mail] disabled: missing SMTP environment variables")
	}
	return &MailService{
		cfg:      cfg,
		siteURL:  siteURL,
		Enabled:  enabled,
		sendMail: smtp.SendMail,
	}
}

// CommentMail is what the owner is told about a new comment.
type CommentMail struct {
	To          string
	Author      string
	PostContent string
	Comment     string
}

// SendCommentNotification mails the owner in the background.
func (s *MailService) SendCommentNotification(m CommentMail) {
	if !s.Enabled || m.To == "" {
		return
	}
	body, err := s.parseTemplate(map[string]string{
		"Author":      m.Author,
		"PostExcerpt": excerpt(m.PostContent, excerptRunes),
		"Comment":     m.Comment,
		"PostLink":    s.siteURL + "/",
	})
	if err != nil {
		log.Printf("[mail] render comment notification: %v", err)
		return
	}
	s.sendAsync([]string{m.To}, "New comment from "+m.Author, body)
}

// Wait blocks until queued mails have been handed to the SMTP server.
func (s *MailService) Wait() {
	s.wg.Wait()
}

func (s *MailService) sendAsync(to []string, subject, body string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		addr := fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port)

		mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"From: Thoughts <%s>\r\n"+
			"Subject: %s\r\n"+
			"%s\r\n%s", strings.Join(to, ","), s.cfg.From, subject, mime, body))

		if err := s.sendMail(addr, auth, s.cfg.From, to, msg); err != nil {
			log.Printf("[mail] send to %v failed: %v", to, err)
			return
		}
		log.Printf("[mail] sent to %v: %s", to, subject)
	}()
}

func (s *MailService) parseTemplate(data any) (string, error) {
	s.tmplOnce.Do(func() {
		s.tmpl, s.tmplErr = template.ParseFS(web.FS, "templates/email/comment.html")
	})
	if s.tmplErr != nil {
		return "", fmt.Errorf("parse comment mail: %w", s.tmplErr)
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute comment mail: %w", err)
	}
	return buf.String(), nil
}

func excerpt(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
