package postgres

import (
	"context"

	"github.com/kasrafouladi/Elmosyar/internal/models"
	repo "github.com/kasrafouladi/Elmosyar/internal/repository"
)

// itemsRepo projects the posts table onto models.Item. The posts schema is
// owned by the post subsystem; only attributes->isSoldOut is ever written here.
type itemsRepo struct{ q querier }

func scanItem(row interface{ Scan(...any) error }) (models.Item, error) {
	var it models.Item
	err := row.Scan(&it.ID, &it.OwnerID, &it.Attributes)
	if it.Attributes == nil {
		it.Attributes = map[string]any{}
	}
	return it, mapErr(err)
}

func (r *itemsRepo) Get(ctx context.Context, id int64) (models.Item, error) {
	return scanItem(r.q.QueryRow(ctx,
		`SELECT id, author_id, attributes FROM posts WHERE id = $1`, id))
}

func (r *itemsRepo) GetForUpdate(ctx context.Context, id int64) (models.Item, error) {
	return scanItem(r.q.QueryRow(ctx,
		`SELECT id, author_id, attributes FROM posts WHERE id = $1 FOR UPDATE`, id))
}

func (r *itemsRepo) MarkSold(ctx context.Context, id int64) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE posts
		    SET attributes = jsonb_set(COALESCE(attributes, '{}'::jsonb), '{isSoldOut}', 'true'::jsonb),
		        updated_at = now()
		  WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
