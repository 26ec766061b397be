package submitissuereport

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	emailsend "birdwatch-support/internal/workers/communication/email-send"
)

// EmailContent holds both notification emails for one report.
type EmailContent struct {
	Support        emailsend.SendRequest
	Acknowledgment emailsend.SendRequest
}

// BuildEmailContent renders the support-facing report and the reporter's
// acknowledgment.
func BuildEmailContent(caseNumber, reporterEmail, description, supportAddress string) EmailContent {
	supportText := fmt.Sprintf(
		"New issue report\n\nCase Number: %s\nReporter: %s\n\nDescription:\n%s\n",
		caseNumber, reporterEmail, description,
	)
	supportHTML := fmt.Sprintf(
		"<h2>New Issue Report</h2><p><strong>Case Number:</strong> %s</p><p><strong>Reporter:</strong> %s</p><p><strong>Description:</strong></p><p>%s</p>",
		html.EscapeString(caseNumber), html.EscapeString(reporterEmail), paragraphs(description),
	)

	ackText := fmt.Sprintf(
		"Thank you for reporting an issue.\n\nYour case number is %s. Our support team will review your report and respond shortly.\n\nYour description:\n%s\n\nBirdWatch Support",
		caseNumber, description,
	)
	ackHTML := fmt.Sprintf(
		"<h2>We received your issue report</h2><p>Your case number is <strong>%s</strong>. Our support team will review your report and respond shortly.</p><p><strong>Your description:</strong></p><p>%s</p><p>BirdWatch Support</p>",
		html.EscapeString(caseNumber), paragraphs(description),
	)

	return EmailContent{
		Support: emailsend.SendRequest{
			To:      supportAddress,
			Subject: fmt.Sprintf("[Case %s] New Issue Report", caseNumber),
			Text:    supportText,
			HTML:    &supportHTML,
		},
		Acknowledgment: emailsend.SendRequest{
			To:      reporterEmail,
			Subject: fmt.Sprintf("[Case %s] We received your issue report", caseNumber),
			Text:    ackText,
			HTML:    &ackHTML,
		},
	}
}

// maxWebhookContent is Discord's limit on message content, in characters.
const maxWebhookContent = 2000

// WebhookMessage formats the team-chat summary. A long description is cut so
// the whole message stays within maxWebhookContent; the full text is in the
// support email.
func WebhookMessage(caseNumber, reporterEmail, description string) string {
	header := fmt.Sprintf("🎫 New Issue Report (%s)\n📧 Reporter: %s\n📝 Description: ", caseNumber, reporterEmail)
	return header + truncateRunes(description, maxWebhookContent-utf8.RuneCountInString(header))
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}

func paragraphs(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}
