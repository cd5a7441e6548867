// Package mail отправляет письма поставщикам через SMTP
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/Shreyansh0843/rfp-system/internal/config"
	"github.com/Shreyansh0843/rfp-system/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	senderName      = "RFP Management System"
	maxRequirements = 5
	deadlineLayout  = "Monday, January 2, 2006"
	submittedLayout = "January 2, 2006 15:04 MST"
)

// Sender отправляет готовое сообщение; *gomail.Dialer подходит как есть
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	sender      Sender
	from        string
	frontendURL string
	log         *zap.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, frontendURL string, log *zap.Logger) *SMTPMailer {
	return NewMailer(gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password), cfg.From, frontendURL, log)
}

func NewMailer(sender Sender, from, frontendURL string, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		sender:      sender,
		from:        from,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log.Named("mail"),
	}
}

type invitationData struct {
	VendorName    string
	Company       string
	CustomMessage string
	Title         string
	Description   string
	Category      models.Category
	BudgetRange   string
	Deadline      string
	Requirements  models.Requirements
	Link          string
}

type confirmationData struct {
	VendorName    string
	RFPTitle      string
	ProposalTitle string
	SubmittedAt   string
	Amount        string
}

func (m *SMTPMailer) SendInvitation(ctx context.Context, vendor *models.Vendor, rfp *models.RFP, customMessage string) error {
	reqs := rfp.Requirements
	if len(reqs) > maxRequirements {
		reqs = reqs[:maxRequirements]
	}
	body, err := render("invitation.html", invitationData{
		VendorName:    vendor.Name,
		Company:       vendor.Company,
		CustomMessage: strings.TrimSpace(customMessage),
		Title:         rfp.Title,
		Description:   rfp.Description,
		Category:      rfp.Category,
		BudgetRange:   BudgetRange(rfp.Budget),
		Deadline:      rfp.Deadline.Format(deadlineLayout),
		Requirements:  reqs,
		Link:          InvitationLink(m.frontendURL, rfp),
	})
	if err != nil {
		return err
	}
	if err := m.send(ctx, vendor.Email, "RFP Invitation: "+rfp.Title, body); err != nil {
		m.log.Error("invitation failed", zap.String("to", vendor.Email), zap.String("rfp_id", rfp.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.log.Info("invitation sent", zap.String("to", vendor.Email), zap.String("rfp_id", rfp.ID.String()))
	return nil
}

func (m *SMTPMailer) SendConfirmation(ctx context.Context, vendor *models.Vendor, rfp *models.RFP, proposal *models.Proposal) error {
	body, err := render("confirmation.html", confirmationData{
		VendorName:    vendor.Name,
		RFPTitle:      rfp.Title,
		ProposalTitle: proposal.Title,
		SubmittedAt:   proposal.SubmittedAt.UTC().Format(submittedLayout),
		Amount:        Money(proposal.Pricing.Amount(), proposal.Pricing.Currency),
	})
	if err != nil {
		return err
	}
	if err := m.send(ctx, vendor.Email, "Proposal Received: "+rfp.Title, body); err != nil {
		return fmt.Errorf("failed to send confirmation: %w", err)
	}
	m.log.Info("confirmation sent", zap.String("to", vendor.Email), zap.String("proposal_id", proposal.ID.String()))
	return nil
}

// send: gomail не принимает контекст, поэтому отменённый запрос просто не отправляется
func (m *SMTPMailer) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, senderName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)
	return m.sender.DialAndSend(msg)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

// InvitationLink ссылка на форму подачи предложения во фронтенде
func InvitationLink(frontendURL string, rfp *models.RFP) string {
	return strings.TrimRight(frontendURL, "/") + "/proposal/submit/" + rfp.ID.String()
}

func BudgetRange(b models.Budget) string {
	if b.Max.IsZero() {
		return "To be discussed"
	}
	return Money(b.Min, b.Currency) + " - " + Money(b.Max, b.Currency)
}

// Money: 1234567.5 USD -> "$1,234,567.50"; прочие валюты пишутся кодом после суммы
func Money(d decimal.Decimal, currency string) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	if currency == "" || currency == "USD" {
		return "$" + out
	}
	return out + " " + currency
}
