package alerts

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"tradelic.app/cloud/internal/logger"
	"tradelic.app/cloud/models"
)

// Email sends the alert lines for a statistics snapshot as a plain-text
// digest. SMTP settings come from the environment; a missing
// configuration is an error, an empty alert list is not.
func Email(to string, stats *models.Statistics) error {
	lines := stats.Alerts()
	if len(lines) == 0 {
		logger.Debug("no alerts to send")
		return nil
	}

	smtpHost := os.Getenv("SMTP_HOST")
	smtpPort := os.Getenv("SMTP_PORT")
	smtpUser := os.Getenv("SMTP_USER")
	smtpPass := os.Getenv("SMTP_PASS")

	if smtpHost == "" || smtpPort == "" || smtpUser == "" || smtpPass == "" {
		logger.Error("SMTP configuration missing")
		return fmt.Errorf("SMTP configuration missing")
	}

	auth := smtp.PlainAuth("", smtpUser, smtpPass, smtpHost)

	subject := fmt.Sprintf("License alerts: %d items, health %.0f%%", len(lines), stats.HealthScore)
	body := "- " + strings.Join(lines, "\n- ") + "\n\n" + stats.Report()

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", smtpUser, to, subject, body))

	addr := fmt.Sprintf("%s:%s", smtpHost, smtpPort)
	return smtp.SendMail(addr, auth, smtpUser, []string{to}, msg)
}
