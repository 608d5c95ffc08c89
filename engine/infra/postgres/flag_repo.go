package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/Druk83/TrainingGround/engine/content"
)

type FlagRepo struct {
	db DBInterface
}

func NewFlagRepo(db DBInterface) *FlagRepo {
	return &FlagRepo{db: db}
}

type flagRow struct {
	Name    string `db:"flag_name"`
	Enabled bool   `db:"enabled"`
	Config  []byte `db:"config"`
}

func (r *FlagRepo) GetFlag(ctx context.Context, name string) (*content.FeatureFlag, error) {
	query, args, err := squirrel.Select("flag_name", "enabled", "config").
		From("feature_flags").
		Where(squirrel.Eq{"flag_name": name}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build flag query: %w", err)
	}
	var row flagRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("flag %q: %w", name, content.ErrNotFound)
		}
		return nil, fmt.Errorf("get flag %q: %w", name, err)
	}
	flag := &content.FeatureFlag{Name: row.Name, Enabled: row.Enabled}
	if err := decodeJSON(row.Config, &flag.Config); err != nil {
		return nil, fmt.Errorf("decode flag %q config: %w", name, err)
	}
	return flag, nil
}

var _ content.FlagRepository = (*FlagRepo)(nil)
