package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Druk83/TrainingGround/engine/content"
)

// DBInterface is the subset of pgxpool.Pool the repositories use.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type ContentRepo struct {
	db DBInterface
}

func NewContentRepo(db DBInterface) *ContentRepo {
	return &ContentRepo{db: db}
}

var ruleColumns = []string{
	"id",
	"name",
	"description",
	"slug",
	"status",
	"COALESCE(metadata->>'difficulty', '') AS difficulty",
}

var templateColumns = []string{
	"id",
	"COALESCE(level_id, '') AS level_id",
	"status",
	"content",
	"difficulty",
	"rule_ids",
	"params",
	"metadata",
}

type taskRow struct {
	ID         string  `db:"id"`
	TemplateID *string `db:"template_id"`
	Content    []byte  `db:"content"`
	Hints      []byte  `db:"hints"`
}

type templateRow struct {
	ID         string   `db:"id"`
	LevelID    string   `db:"level_id"`
	Status     string   `db:"status"`
	Content    string   `db:"content"`
	Difficulty string   `db:"difficulty"`
	RuleIDs    []string `db:"rule_ids"`
	Params     []byte   `db:"params"`
	Metadata   []byte   `db:"metadata"`
}

type ruleRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Slug        string `db:"slug"`
	Status      string `db:"status"`
	Difficulty  string `db:"difficulty"`
}

func (r ruleRow) toDomain() content.Rule {
	return content.Rule(r)
}

func selectRules() squirrel.SelectBuilder {
	return squirrel.Select(ruleColumns...).From("rules").PlaceholderFormat(squirrel.Dollar)
}

func selectTemplates() squirrel.SelectBuilder {
	return squirrel.Select(templateColumns...).From("templates").PlaceholderFormat(squirrel.Dollar)
}

func (r *ContentRepo) getOne(ctx context.Context, dst any, qb squirrel.SelectBuilder, what, id string) error {
	query, args, err := qb.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", what, err)
	}
	if err := pgxscan.Get(ctx, r.db, dst, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return fmt.Errorf("%s %q: %w", what, id, content.ErrNotFound)
		}
		return fmt.Errorf("get %s %q: %w", what, id, err)
	}
	return nil
}

func (r *ContentRepo) GetTask(ctx context.Context, id string) (*content.Task, error) {
	qb := squirrel.Select("id", "template_id", "content", "hints").
		From("tasks").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	var row taskRow
	if err := r.getOne(ctx, &row, qb, "task", id); err != nil {
		return nil, err
	}
	task := &content.Task{ID: row.ID}
	if row.TemplateID != nil {
		task.TemplateID = *row.TemplateID
	}
	if err := decodeJSON(row.Content, &task.Content); err != nil {
		return nil, fmt.Errorf("decode task %q content: %w", id, err)
	}
	if err := decodeJSON(row.Hints, &task.Hints); err != nil {
		return nil, fmt.Errorf("decode task %q hints: %w", id, err)
	}
	return task, nil
}

func (r *ContentRepo) GetTemplate(ctx context.Context, id string) (*content.Template, error) {
	var row templateRow
	if err := r.getOne(ctx, &row, selectTemplates().Where(squirrel.Eq{"id": id}), "template", id); err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (row templateRow) toDomain() (*content.Template, error) {
	tpl := &content.Template{
		ID:         row.ID,
		LevelID:    row.LevelID,
		Status:     row.Status,
		Content:    row.Content,
		Difficulty: row.Difficulty,
		RuleIDs:    append([]string{}, row.RuleIDs...),
	}
	if err := decodeJSON(row.Params, &tpl.Params); err != nil {
		return nil, fmt.Errorf("decode template %q params: %w", row.ID, err)
	}
	if err := decodeJSON(row.Metadata, &tpl.Metadata); err != nil {
		return nil, fmt.Errorf("decode template %q metadata: %w", row.ID, err)
	}
	return tpl, nil
}

func (r *ContentRepo) GetLevel(ctx context.Context, id string) (*content.Level, error) {
	qb := squirrel.Select("id", "COALESCE(topic_id, '') AS topic_id", "name").
		From("levels").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	var level content.Level
	if err := r.getOne(ctx, &level, qb, "level", id); err != nil {
		return nil, err
	}
	return &level, nil
}

func (r *ContentRepo) GetTopic(ctx context.Context, id string) (*content.Topic, error) {
	qb := squirrel.Select("id", "name").
		From("topics").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)
	var topic content.Topic
	if err := r.getOne(ctx, &topic, qb, "topic", id); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (r *ContentRepo) GetRule(ctx context.Context, id string) (*content.Rule, error) {
	var row ruleRow
	if err := r.getOne(ctx, &row, selectRules().Where(squirrel.Eq{"id": id}), "rule", id); err != nil {
		return nil, err
	}
	rule := row.toDomain()
	return &rule, nil
}

func (r *ContentRepo) ListRulesByIDs(ctx context.Context, ids []string) ([]content.Rule, error) {
	if len(ids) == 0 {
		return []content.Rule{}, nil
	}
	rows, err := r.selectRules(ctx, selectRules().Where(squirrel.Eq{"id": ids}))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]content.Rule, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.toDomain()
	}
	out := make([]content.Rule, 0, len(ids))
	for _, id := range ids {
		if rule, ok := byID[id]; ok {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *ContentRepo) ListRules(ctx context.Context, afterID string, limit int) ([]content.Rule, error) {
	qb := selectRules().Where(squirrel.Gt{"id": afterID}).OrderBy("id")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	rows, err := r.selectRules(ctx, qb)
	if err != nil {
		return nil, err
	}
	out := make([]content.Rule, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *ContentRepo) selectRules(ctx context.Context, qb squirrel.SelectBuilder) ([]ruleRow, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build rules query: %w", err)
	}
	var rows []ruleRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}
	return rows, nil
}

func (r *ContentRepo) ListReadyTemplates(ctx context.Context, levelID string) ([]content.Template, error) {
	query, args, err := selectTemplates().
		Where(squirrel.Eq{"level_id": levelID, "status": content.ReadyTemplateStatuses}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build templates query: %w", err)
	}
	var rows []templateRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select templates for level %q: %w", levelID, err)
	}
	out := make([]content.Template, 0, len(rows))
	for _, row := range rows {
		tpl, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *tpl)
	}
	return out, nil
}

func decodeJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

var _ content.Repository = (*ContentRepo)(nil)
