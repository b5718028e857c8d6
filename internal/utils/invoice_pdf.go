package utils

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"cedra_orders/internal/config"
	"cedra_orders/internal/models"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

const renderTimeout = 30 * time.Second

// GenerateSepaQR génère un QR SEPA (EPC) en base64 prêt à mettre dans <img src="...">
func GenerateSepaQR(iban, bic, name, ref string, amount decimal.Decimal) (string, error) {
	sepa := fmt.Sprintf("BCD\n001\n1\nSCT\n%s\n%s\n%s\nEUR%s\n%s", bic, name, iban, amount.StringFixed(2), ref)

	png, err := qrcode.Encode(sepa, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// InvoiceRenderer imprime la page facture du front en PDF via Chrome headless.
type InvoiceRenderer struct {
	cfg config.InvoiceConfig
}

func NewInvoiceRenderer(cfg config.InvoiceConfig) *InvoiceRenderer {
	return &InvoiceRenderer{cfg: cfg}
}

func InvoiceReference(orderID string) string {
	return "FACT-" + orderID
}

// InvoiceURL construit l'URL de la page facture, paramètres en query.
func (r *InvoiceRenderer) InvoiceURL(order *models.Order) (string, error) {
	qr, err := GenerateSepaQR(r.cfg.IBAN, r.cfg.BIC, r.cfg.CompanyName, InvoiceReference(order.ID), order.TotalAmount)
	if err != nil {
		return "", fmt.Errorf("erreur génération QR: %w", err)
	}
	q := url.Values{}
	q.Set("id", order.ID)
	q.Set("qr", qr)
	return r.cfg.FrontendURL + "?" + q.Encode(), nil
}

func (r *InvoiceRenderer) Render(ctx context.Context, order *models.Order) ([]byte, error) {
	fullURL, err := r.InvoiceURL(order)
	if err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(ctx)
	defer cancel()
	ctx, cancel = context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	var pdf []byte
	err = chromedp.Run(ctx,
		chromedp.Navigate(fullURL),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("rendu facture %s: %w", order.ID, err)
	}
	return pdf, nil
}
