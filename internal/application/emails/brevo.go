package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const brevoAPI = "https://api.brevo.com/v3/smtp/email"

// BrevoSendRequest matches Brevo API v3 send transactional email body.
type BrevoSendRequest struct {
	Sender      BrevoSender   `json:"sender"`
	To          []BrevoTo     `json:"to"`
	Subject     string        `json:"subject"`
	HTMLContent string        `json:"htmlContent"`
	ReplyTo     *BrevoReplyTo `json:"replyTo,omitempty"`
}

type BrevoSender struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type BrevoTo struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type BrevoReplyTo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// NoticeLine is one billing call listed in a notice.
type NoticeLine struct {
	PeriodeDebut time.Time
	PeriodeFin   time.Time
	DateEcheance time.Time
	Montant      decimal.Decimal
}

// CallNotice tells one owner about the billing calls just issued for a charge.
type CallNotice struct {
	ToEmail       string
	OwnerName     string
	BuildingName  string
	ChargeLibelle string
	Lines         []NoticeLine
}

// Total is the sum of the listed amounts.
func (n CallNotice) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range n.Lines {
		total = total.Add(l.Montant)
	}
	return total
}

// Sender sends transactional emails. Nil = no-op.
type Sender interface {
	SendCallNotice(ctx context.Context, notice CallNotice) error
}

// BrevoClient sends emails via the Brevo (Sendinblue) API. An empty APIKey disables sending.
type BrevoClient struct {
	APIKey     string
	MailFrom   string
	SenderName string
	Endpoint   string
	Client     *http.Client
}

func (c *BrevoClient) from() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return "noreply@copro.local"
}

func (c *BrevoClient) name() string {
	if c.SenderName != "" {
		return c.SenderName
	}
	return "Syndic de copropriété"
}

func (c *BrevoClient) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return brevoAPI
}

// send sends one email via Brevo API.
func (c *BrevoClient) send(ctx context.Context, toEmail, toName, subject, html string) error {
	if c.APIKey == "" {
		return nil
	}
	body := BrevoSendRequest{
		Sender:      BrevoSender{Email: c.from(), Name: c.name()},
		To:          []BrevoTo{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: html,
		ReplyTo:     &BrevoReplyTo{Email: c.from(), Name: c.name()},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(bodyBytes))
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("brevo send failed: status %d", resp.StatusCode)
	}
	return nil
}

// SendCallNotice sends the "appel de charges" notice to one owner.
func (c *BrevoClient) SendCallNotice(ctx context.Context, notice CallNotice) error {
	if c.APIKey == "" || notice.ToEmail == "" || len(notice.Lines) == 0 {
		return nil
	}
	subject := fmt.Sprintf("Appel de charges : %s (%s)", notice.ChargeLibelle, notice.BuildingName)
	return c.send(ctx, notice.ToEmail, notice.OwnerName, subject, EmailLayout(callNoticeContent(notice), c.name()))
}

func callNoticeContent(n CallNotice) string {
	var rows strings.Builder
	for _, l := range n.Lines {
		fmt.Fprintf(&rows, `
        <tr><td>du %s au %s</td><td>%s</td><td class="amount">%s €</td></tr>`,
			frDate(l.PeriodeDebut), frDate(l.PeriodeFin), frDate(l.DateEcheance), frAmount(l.Montant))
	}
	owner := n.OwnerName
	if owner == "" {
		owner = "Madame, Monsieur"
	}
	return fmt.Sprintf(`
    <h1>Appel de charges</h1>
    <p>Bonjour %s,</p>
    <p>Le syndic de l'immeuble <strong>%s</strong> vous adresse les appels suivants au titre de la charge <strong>%s</strong>.</p>
    <table class="calls" role="presentation">
      <tr><th>Période</th><th>Échéance</th><th style="text-align:right;">Montant</th></tr>%s
      <tr><td colspan="2"><strong>Total</strong></td><td class="amount"><strong>%s €</strong></td></tr>
    </table>
    <p>Merci de procéder au règlement avant chaque date d'échéance.</p>
`, EscapeHTML(owner), EscapeHTML(n.BuildingName), EscapeHTML(n.ChargeLibelle), rows.String(), frAmount(n.Total()))
}

func frDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// frAmount renders 1234.5 as "1234,50".
func frAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}
