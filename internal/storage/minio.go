// Package storage dépose les factures PDF dans MinIO.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

type InvoiceStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewInvoiceStore(client *minio.Client, bucket string, expiry time.Duration) *InvoiceStore {
	return &InvoiceStore{client: client, bucket: bucket, expiry: expiry}
}

func InvoiceKey(orderID string) string {
	return fmt.Sprintf("invoices/%s.pdf", orderID)
}

// Upload dépose le PDF puis retourne une URL signée valable expiry.
func (s *InvoiceStore) Upload(ctx context.Context, orderID string, pdf []byte) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}
	key := InvoiceKey(orderID)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(pdf), int64(len(pdf)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return "", fmt.Errorf("upload facture %s: %w", orderID, err)
	}
	return s.SignedURL(ctx, key)
}

func (s *InvoiceStore) SignedURL(ctx context.Context, key string) (string, error) {
	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", "inline; filename=\"facture.pdf\"")

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, reqParams)
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}
