// Package services porte la logique métier des commandes, paiements et paniers.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cedra_orders/internal/apperr"
	"cedra_orders/internal/repository"
)

// Nombre de relectures après un conflit de version.
const maxConflictRetries = 5

// storeErr traduit une erreur de repository : ErrNotFound devient NotFound(msg),
// le reste reste une erreur interne.
func storeErr(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(msg)
	case errors.As(err, new(*apperr.Error)):
		return err
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

// retryOnConflict rejoue fn tant qu'elle échoue sur ErrVersionConflict.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = fn(); !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return apperr.Conflict("concurrent update, retry later")
}

// retryWithBackoff rejoue fn jusqu'à attempts fois, le délai doublant à
// chaque échec. Retourne la dernière erreur.
func retryWithBackoff(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func now() time.Time {
	return time.Now().UTC()
}
