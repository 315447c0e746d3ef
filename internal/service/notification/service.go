// internal/service/notification/service.go
package notification

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/domain/subscription"
	"github.com/damsblt/only-you-coaching-app-sub004/internal/service/email"

	"go.uber.org/zap"
)

// NotificationService sends the subscription emails. Without a sender it
// only logs what it would have sent.
type NotificationService struct {
	sender     email.Sender
	adminEmail string
	siteURL    string
	logger     *zap.Logger
}

func NewNotificationService(sender email.Sender, adminEmail, siteURL string, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		sender:     sender,
		adminEmail: adminEmail,
		siteURL:    strings.TrimRight(siteURL, "/"),
		logger:     logger,
	}
}

// NotifyAdmin alerts the studio about a new subscription.
func (s *NotificationService) NotifyAdmin(ctx context.Context, n subscription.Notice) error {
	subject, body := s.adminMessage(n)
	return s.send(ctx, email.Message{
		To:       s.adminEmail,
		Subject:  subject,
		BodyHTML: body,
		Tag:      "subscription-admin",
	}, n)
}

// NotifyClient confirms the subscription to the subscriber.
func (s *NotificationService) NotifyClient(ctx context.Context, n subscription.Notice) error {
	if n.Email == "" {
		return fmt.Errorf("subscription %s has no client email", n.SubscriptionID)
	}
	subject, body := s.clientMessage(n)
	return s.send(ctx, email.Message{
		To:       n.Email,
		Subject:  subject,
		BodyHTML: body,
		Tag:      "subscription-client",
	}, n)
}

func (s *NotificationService) send(ctx context.Context, msg email.Message, n subscription.Notice) error {
	if s.sender == nil {
		s.logger.Info("email delivery disabled, notification logged only",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.String("subscription_id", n.SubscriptionID),
		)
		return nil
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send %s email: %w", msg.Tag, err)
	}

	s.logger.Info("notification sent",
		zap.String("tag", msg.Tag),
		zap.String("subscription_id", n.SubscriptionID),
	)
	return nil
}

// ========== Templates ==========

func (s *NotificationService) adminMessage(n subscription.Notice) (string, string) {
	subject := fmt.Sprintf("Nouvel abonnement: %s", n.ProductName)
	if !n.Live {
		subject = "[TEST] " + subject
	}

	rows := []string{
		row("Client", n.Name),
		row("Email", n.Email),
		row("Plan", n.PlanID),
		row("Montant", formatAmount(n.AmountCents, n.Currency)),
		row("Abonnement", n.SubscriptionID),
	}
	if n.PromoCode != "" {
		rows = append(rows, row("Code promo", n.PromoCode))
	}
	if n.CommitmentEnd != nil {
		rows = append(rows, row("Fin d'engagement", n.CommitmentEnd.Format("02.01.2006")))
	}

	body := fmt.Sprintf(`
		<h2>Nouvel abonnement</h2>
		<table class="summary">%s</table>
	`, strings.Join(rows, ""))
	return subject, body
}

func (s *NotificationService) clientMessage(n subscription.Notice) (string, string) {
	subject := "Votre abonnement Only You Coaching est confirmé"

	name := n.Name
	if name == "" {
		name = "cliente"
	}

	commitment := ""
	if n.CommitmentEnd != nil {
		commitment = fmt.Sprintf(
			"<p>Votre engagement se termine le %s. L'abonnement prendra fin automatiquement à cette date.</p>",
			n.CommitmentEnd.Format("02.01.2006"),
		)
	}

	body := fmt.Sprintf(`
		<h2>Merci pour votre abonnement</h2>
		<p>Bonjour %s,</p>
		<p>Votre abonnement <strong>%s</strong> est actif. Montant mensuel: %s.</p>
		%s
		<p><a href="%s/dashboard">Accéder à mon espace</a></p>
	`, html.EscapeString(name), html.EscapeString(n.ProductName), formatAmount(n.AmountCents, n.Currency), commitment, s.siteURL)
	return subject, body
}

func row(label, value string) string {
	return fmt.Sprintf("<tr><td><strong>%s</strong></td><td>%s</td></tr>", label, html.EscapeString(value))
}

func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, strings.ToUpper(currency))
}
