package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnlog/internal/model"
)

// PostgresTopicRepo はPostgreSQLを使用したトピックリポジトリ。
// リソース列はJSONBで保持し、トピック1行を1ドキュメントとして扱う。
// 単一ドキュメントへの複数フィールド更新は1回のUPDATEとして原子的になる。
type PostgresTopicRepo struct {
	db *sql.DB
}

// NewPostgresTopicRepo はPostgresTopicRepoを生成する。
func NewPostgresTopicRepo(db *sql.DB) *PostgresTopicRepo {
	return &PostgresTopicRepo{db: db}
}

// FindByID は指定IDのトピックを取得する。見つからない場合はnilを返す。
func (r *PostgresTopicRepo) FindByID(ctx context.Context, id string) (*model.Topic, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, category, progress, resources, notes, created_at, updated_at
		 FROM topics WHERE id = $1`,
		id,
	)

	topic, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find topic by ID: %w", err)
	}

	return topic, nil
}

// ListByUserID は所有ユーザーでスコープしたトピック一覧をcreated_at昇順で返す。
func (r *PostgresTopicRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Topic, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, category, progress, resources, notes, created_at, updated_at
		 FROM topics WHERE user_id = $1 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	defer rows.Close()

	var topics []*model.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate topics: %w", err)
	}

	return topics, nil
}

// Create はトピックドキュメントを作成し、ストア払い出しのIDを設定する。
// 呼び出し側が設定した仮IDは破棄される。
func (r *PostgresTopicRepo) Create(ctx context.Context, topic *model.Topic) error {
	topic.ID = uuid.New().String()

	resources, err := marshalResources(topic.Resources)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO topics (id, user_id, name, category, progress, resources, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		topic.ID, topic.UserID, topic.Name, topic.Category, string(topic.Progress),
		resources, topic.Notes, topic.CreatedAt, topic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert topic: %w", err)
	}
	return nil
}

// Replace はトピックドキュメント全体をIDで置き換える（last-write-wins）。
func (r *PostgresTopicRepo) Replace(ctx context.Context, topic *model.Topic) error {
	resources, err := marshalResources(topic.Resources)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE topics
		 SET name = $2, category = $3, progress = $4, resources = $5, notes = $6, updated_at = $7
		 WHERE id = $1`,
		topic.ID, topic.Name, topic.Category, string(topic.Progress),
		resources, topic.Notes, topic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to replace topic: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのトピックを削除する。
// RowsAffectedは検査しない: 存在しないIDの削除は成功扱い（冪等）。
func (r *PostgresTopicRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM topics WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全トピックを削除する。
func (r *PostgresTopicRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM topics WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user topics: %w", err)
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsの共通Scanインターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTopic は1行をTopicに変換する。resources列のJSONBをデコードする。
func scanTopic(row rowScanner) (*model.Topic, error) {
	topic := &model.Topic{}
	var progress string
	var resources []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&topic.ID, &topic.UserID, &topic.Name, &topic.Category,
		&progress, &resources, &topic.Notes, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	topic.Progress = model.Progress(progress)
	topic.CreatedAt = createdAt
	topic.UpdatedAt = updatedAt

	if len(resources) > 0 {
		if err := json.Unmarshal(resources, &topic.Resources); err != nil {
			return nil, fmt.Errorf("failed to decode resources: %w", err)
		}
	}
	if topic.Resources == nil {
		topic.Resources = []model.Resource{}
	}

	return topic, nil
}

// marshalResources はリソース列をJSONBに変換する。nilは空配列として保存する。
func marshalResources(resources []model.Resource) ([]byte, error) {
	if resources == nil {
		resources = []model.Resource{}
	}
	data, err := json.Marshal(resources)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resources: %w", err)
	}
	return data, nil
}

// compile-time interface check
var _ TopicRepository = (*PostgresTopicRepo)(nil)
