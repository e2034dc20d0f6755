package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"
)

type EmailService struct {
	host        string
	port        string
	user        string
	pass        string
	from        string
	frontendURL string
	devMode     bool
}

func NewEmailService(host, port, user, pass, from, frontendURL string) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		log.Println("⚠ Email service running in DEV MODE (logging to console)")
	}
	return &EmailService{
		host:        host,
		port:        port,
		user:        user,
		pass:        pass,
		from:        from,
		frontendURL: frontendURL,
		devMode:     devMode,
	}
}

func (s *EmailService) SendWarningEmail(to, fullName string, activeStrikes, suspensionThreshold int) error {
	subject := "Duty attendance warning"
	body := s.wrap("Attendance Warning", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 16px;">
        Hi %s, you now have <strong>%d active strikes</strong> on your duty record.
        Reaching %d strikes suspends your account from club duty.
      </p>
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        Please review your duty sessions and keep up the hourly check-ins.
      </p>
      <a href="%s/strikes" style="display: inline-block; background: #f59e0b; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Review My Strikes
      </a>`, fullName, activeStrikes, suspensionThreshold, s.frontendURL))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendSuspensionEmail(to, fullName string, until time.Time) error {
	subject := "Account suspended from club duty"
	body := s.wrap("Account Suspended", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 16px;">
        Hi %s, repeated attendance violations have suspended your account from
        club duty until <strong>%s</strong>.
      </p>
      <p style="color: #94a3b8; font-size: 12px; margin: 0;">
        The suspension lifts automatically on that date. Contact the core team
        if you believe this is a mistake.
      </p>`, fullName, until.Format("January 2, 2006")))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendStrikeResolvedEmail(to, fullName, reason string) error {
	subject := "A strike on your record was resolved"
	body := s.wrap("Strike Resolved", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0;">
        Hi %s, your strike for <strong>%s</strong> has been resolved by the
        core team and no longer counts toward escalation.
      </p>`, fullName, strings.ReplaceAll(reason, "_", " ")))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) SendDutyReminderEmail(to, fullName string, expectedAt time.Time) error {
	subject := "Hourly check-in due"
	body := s.wrap("Check-In Reminder", fmt.Sprintf(`
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        Hi %s, your hourly duty check-in was expected at <strong>%s</strong>.
        Submit it now to keep your attendance record clean.
      </p>
      <a href="%s/duty" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Submit Check-In
      </a>`, fullName, expectedAt.Format("15:04"), s.frontendURL))
	return s.sendHTML(to, subject, body)
}

func (s *EmailService) wrap(heading, inner string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 480px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: linear-gradient(135deg, #0f172a 0%%, #334155 100%%); padding: 32px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 700;">DutyWatch</h1>
      <p style="color: rgba(255,255,255,0.85); margin: 8px 0 0; font-size: 14px;">Club Duty Attendance</p>
    </div>
    <div style="padding: 32px;">
      <h2 style="margin: 0 0 16px; font-size: 20px; color: #1e293b;">%s</h2>%s
    </div>
  </div>
</body>
</html>`, heading, inner)
}

func (s *EmailService) sendHTML(to, subject, htmlBody string) error {
	if s.devMode {
		log.Printf("📧 [DEV EMAIL] To: %s | Subject: %s", to, subject)
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	log.Printf("📧 Email sent to %s: %s", to, subject)
	return nil
}
