// Package gatewaytest fournit une passerelle de paiement en mémoire pour les tests.
package gatewaytest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/gateway"
	"cedra_orders/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v83/webhook"
)

const Secret = "whsec_test"

type RefundCall struct {
	PaymentIntentID string
	Amount          decimal.Decimal
	RefundID        string
}

type Fake struct {
	mu       sync.Mutex
	sessions map[string]*gateway.CheckoutSession
	seq      int

	CreateErr error
	GetErr    error
	RefundErr error

	Created []string
	Expired []string
	Refunds []RefundCall
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{sessions: make(map[string]*gateway.CheckoutSession)}
}

func (f *Fake) CreateCheckoutSession(_ context.Context, order *models.Order, payment *models.Payment, meta gateway.Metadata) (*gateway.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, apperr.External("payment gateway unavailable", f.CreateErr)
	}
	f.seq++
	id := fmt.Sprintf("cs_test_%d", f.seq)
	s := &gateway.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.test/" + id,
		Status:        gateway.SessionOpen,
		PaymentStatus: gateway.PaymentUnpaid,
		Metadata:      meta.ToMap(),
	}
	f.sessions[id] = s
	f.Created = append(f.Created, id)
	cp := *s
	return &cp, nil
}

func (f *Fake) VerifyWebhook(payload []byte, signature string) (*gateway.Event, error) {
	return gateway.VerifyPayload(payload, signature, Secret)
}

func (f *Fake) GetSession(_ context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, apperr.External("payment gateway unavailable", f.GetErr)
	}
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, apperr.External("payment gateway unavailable", errors.New("no such session"))
	}
	cp := *s
	return &cp, nil
}

func (f *Fake) ExpireSession(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[sessionID]; ok && s.Status == gateway.SessionOpen {
		s.Status = gateway.SessionExpired
	}
	f.Expired = append(f.Expired, sessionID)
	return nil
}

func (f *Fake) Refund(_ context.Context, paymentIntentID string, amount decimal.Decimal, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RefundErr != nil {
		return "", apperr.External("refund failed", f.RefundErr)
	}
	// même clé d'idempotence que l'adaptateur Stripe : un remboursement par intent
	for _, r := range f.Refunds {
		if r.PaymentIntentID == paymentIntentID {
			return r.RefundID, nil
		}
	}
	id := fmt.Sprintf("re_test_%d", len(f.Refunds)+1)
	f.Refunds = append(f.Refunds, RefundCall{PaymentIntentID: paymentIntentID, Amount: amount, RefundID: id})
	return id, nil
}

// Complete simule le paiement réussi d'une session.
func (f *Fake) Complete(sessionID string) *gateway.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[sessionID]
	s.Status = gateway.SessionComplete
	s.PaymentStatus = gateway.PaymentPaid
	s.PaymentIntentID = "pi_" + sessionID
	cp := *s
	return &cp
}

// Session retourne une copie de la session, ou nil.
func (f *Fake) Session(sessionID string) *gateway.CheckoutSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// EventPayload construit le corps JSON d'un webhook de session.
func EventPayload(eventID, eventType string, s *gateway.CheckoutSession) []byte {
	obj := map[string]interface{}{
		"id":             s.ID,
		"object":         "checkout.session",
		"status":         s.Status,
		"payment_status": s.PaymentStatus,
		"metadata":       s.Metadata,
	}
	if s.PaymentIntentID != "" {
		obj["payment_intent"] = s.PaymentIntentID
	}
	body, _ := json.Marshal(map[string]interface{}{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-08-27.basil",
		"data":        map[string]interface{}{"object": obj},
	})
	return body
}

// Sign retourne l'en-tête Stripe-Signature du corps, avec le secret de test.
func Sign(payload []byte) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: Secret})
	return signed.Header
}

// Delivery fournit un webhook signé prêt à envoyer.
func Delivery(eventID, eventType string, s *gateway.CheckoutSession) ([]byte, string) {
	payload := EventPayload(eventID, eventType, s)
	return payload, Sign(payload)
}
