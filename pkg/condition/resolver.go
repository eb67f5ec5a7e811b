package condition

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/dukex/flowcrm/pkg/expression"
	"github.com/dukex/flowcrm/pkg/lookup"
	"github.com/dukex/flowcrm/pkg/models"
)

// NameResolver rewrites the literals of reference leaves into {id, name} pairs so stored
// conditions read well when shown back to authors.
type NameResolver struct {
	users     lookup.Users
	pipelines lookup.Pipelines
	products  lookup.Products
	logger    *slog.Logger
}

func NewNameResolver(users lookup.Users, pipelines lookup.Pipelines, products lookup.Products, logger *slog.Logger) *NameResolver {
	return &NameResolver{
		users:     users,
		pipelines: pipelines,
		products:  products,
		logger:    logger.With("module", "name_resolver"),
	}
}

type nameLookup func(ctx context.Context, id int64, token string) (string, error)

// Resolve returns a new tree; node is left untouched. Failed lookups keep the id with a nil name.
func (r *NameResolver) Resolve(ctx context.Context, node *expression.Node, token string) (*expression.Node, error) {
	if node == nil {
		return nil, nil
	}

	if node.IsLeaf() {
		return r.resolveLeaf(ctx, node, token), nil
	}

	var left, right *expression.Node

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		left, err = r.Resolve(gctx, node.Left(), token)

		return err
	})

	g.Go(func() error {
		var err error
		right, err = r.Resolve(gctx, node.Right(), token)

		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return expression.NewConnective(node.Operator(), left, right), nil
}

func (r *NameResolver) lookupFor(path string) nameLookup {
	switch path {
	case "ownerId", "ownedBy", "createdBy", "updatedBy", "convertedBy":
		return func(ctx context.Context, id int64, token string) (string, error) {
			user, err := r.users.GetUser(ctx, id, token)
			if err != nil {
				return "", err
			}

			return user.Name(), nil
		}
	case "pipeline":
		return idNameLookup(r.pipelines.GetPipeline)
	case "pipelineStage":
		return idNameLookup(r.pipelines.GetPipelineStage)
	case "products":
		return idNameLookup(r.products.GetProduct)
	default:
		return nil
	}
}

func idNameLookup(get func(ctx context.Context, id int64, token string) (models.IdName, error)) nameLookup {
	return func(ctx context.Context, id int64, token string) (string, error) {
		ref, err := get(ctx, id, token)

		return ref.Name, err
	}
}

func (r *NameResolver) resolveLeaf(ctx context.Context, leaf *expression.Node, token string) *expression.Node {
	if leaf.Value() == nil || leaf.Operator().IsUnary() {
		return leaf
	}

	resolve := r.lookupFor(leaf.Name())
	if resolve == nil {
		return leaf
	}

	pair := func(id int64) map[string]any {
		name, err := resolve(ctx, id, token)
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to resolve reference name", "field", leaf.Name(), "id", id, "error", err)

			return map[string]any{"id": id, "name": nil}
		}

		return map[string]any{"id": id, "name": name}
	}

	if id, ok := refID(leaf.Value()); ok {
		return leaf.WithValue(pair(id))
	}

	ids, ok := refIDs(leaf.Value())
	if !ok {
		return leaf
	}

	pairs := make([]any, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, pair(id))
	}

	return leaf.WithValue(pairs)
}
