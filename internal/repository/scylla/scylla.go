// Package scylla implémente les repositories sur ScyllaDB. Les mises à jour
// concurrentes passent par des transactions légères (IF ...).
package scylla

import (
	"context"
	"errors"

	"cedra_orders/internal/repository"

	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"
)

const loadConcurrency = 8

// parseID : un identifiant mal formé ne peut désigner aucune ligne.
func parseID(id string) (gocql.UUID, error) {
	u, err := gocql.ParseUUID(id)
	if err != nil {
		return gocql.UUID{}, repository.ErrNotFound
	}
	return u, nil
}

func mapErr(err error) error {
	if errors.Is(err, gocql.ErrNotFound) {
		return repository.ErrNotFound
	}
	return err
}

// loadAll charge les lignes référencées par une table d'index, en parallèle,
// en ignorant les entrées orphelines.
func loadAll[T any](ctx context.Context, ids []string, get func(context.Context, string) (T, error)) ([]T, error) {
	out := make([]T, len(ids))
	found := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			v, err := get(gctx, id)
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i], found[i] = v, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := make([]T, 0, len(ids))
	for i := range out {
		if found[i] {
			res = append(res, out[i])
		}
	}
	return res, nil
}

func scanIDs(iter *gocql.Iter) ([]string, error) {
	var (
		ids []string
		id  gocql.UUID
	)
	for iter.Scan(&id) {
		ids = append(ids, id.String())
	}
	return ids, iter.Close()
}
