package utils

import (
	"bytes"
	"html/template"

	"cedra_orders/internal/models"
)

var orderConfirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Confirmation de commande</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Confirmation de votre commande</h2>
		<p>Bonjour{{if .Name}} {{.Name}}{{end}},</p>
		<p>Votre commande <strong>{{.Order.ID}}</strong> a été confirmée.</p>
		<table style="width: 100%; border-collapse: collapse; margin: 20px 0;">
			<thead>
				<tr style="background-color: #f0f0f0;">
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Article</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantité</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Prix unitaire</th>
					<th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Total</th>
				</tr>
			</thead>
			<tbody>
			{{range .Order.Items}}
				<tr>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.ListingID}}</td>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.Quantity}}</td>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.UnitPrice.StringFixed 2}}€</td>
					<td style="padding: 10px; border: 1px solid #ddd;">{{.TotalPrice.StringFixed 2}}€</td>
				</tr>
			{{end}}
			</tbody>
			<tfoot>
				<tr>
					<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total :</td>
					<td style="padding: 10px; font-weight: bold;">{{.Order.TotalAmount.StringFixed 2}}€</td>
				</tr>
			</tfoot>
		</table>
		{{if .COD}}<p>Paiement à la livraison. Expédition prévue avant le {{.DispatchBy}}.</p>{{end}}
		<p style="margin-top: 30px; color: #555;">Cordialement,<br><strong>L'équipe Cedra</strong></p>
	</div>
</body>
</html>`))

var invoiceTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Votre facture</title></head>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">Votre facture Cedra</h2>
		<p>Vous trouverez en pièce jointe la facture de la commande <strong>{{.OrderID}}</strong>.</p>
		{{if .URL}}<p><a href="{{.URL}}">Télécharger la facture</a></p>{{end}}
		<p style="margin-top: 30px; color: #555;">Cordialement,<br><strong>L'équipe Cedra</strong></p>
	</div>
</body>
</html>`))

var cancellationTmpl = template.Must(template.New("cancellation").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Commande annulée</title></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
	<p>Votre commande <strong>{{.OrderID}}</strong> a été annulée.</p>
	{{if .Refund}}<p>Le montant de {{.Amount}}€ vous sera remboursé.</p>{{end}}
	<p>L'équipe Cedra</p>
</body>
</html>`))

// OrderConfirmationHTML génère le corps de l'e-mail de confirmation.
func OrderConfirmationHTML(order *models.Order, name string) (string, error) {
	data := struct {
		Order      *models.Order
		Name       string
		COD        bool
		DispatchBy string
	}{Order: order, Name: name, COD: order.PaymentMode == models.PaymentCOD}
	if order.DispatchTime != nil {
		data.DispatchBy = order.DispatchTime.Format("02/01/2006")
	}
	return render(orderConfirmationTmpl, data)
}

func InvoiceEmailHTML(orderID, url string) (string, error) {
	return render(invoiceTmpl, struct{ OrderID, URL string }{orderID, url})
}

func CancellationHTML(order *models.Order, refund bool) (string, error) {
	return render(cancellationTmpl, struct {
		OrderID string
		Refund  bool
		Amount  string
	}{order.ID, refund, order.TotalAmount.StringFixed(2)})
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
