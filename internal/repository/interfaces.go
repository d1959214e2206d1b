// Package repository はデータ永続化のインターフェースを定義する。
//
// このレイヤーがリモートドキュメントコレクションの役割を担う:
// レコードごとの一意ID払い出し、所有ユーザーによる等価フィルタ、
// ドキュメント全体の置き換え更新（last-write-wins）を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/learnlog/internal/model"
)

// UserRepository はユーザーレコードの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名の完全一致（大文字小文字を区別）でユーザーを
	// 検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーレコードを作成する。
	Create(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションレコードの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TopicRepository はトピックドキュメントの永続化インターフェース。
type TopicRepository interface {
	// FindByID は指定IDのトピックを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Topic, error)

	// ListByUserID は所有ユーザーでスコープしたトピック一覧をcreated_at昇順で返す。
	// 所有者スコープはストア側のWHERE句で強制され、クライアント側の
	// フィルタリングには依存しない。
	ListByUserID(ctx context.Context, userID string) ([]*model.Topic, error)

	// Create はトピックドキュメントを作成し、ストア払い出しのIDを設定する。
	// 呼び出し側が設定したIDは無視される。
	Create(ctx context.Context, topic *model.Topic) error

	// Replace はトピックドキュメント全体をIDで置き換える（last-write-wins）。
	// 楽観的並行性制御トークンは持たない。2セッションからの同時更新は
	// ストア到着順で上書きされる（設計上の既知の制限）。
	Replace(ctx context.Context, topic *model.Topic) error

	// DeleteByID は指定IDのトピックを削除する。冪等であり、
	// 存在しないIDの削除もエラーにならない。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID は指定ユーザーの全トピックを削除する。退会処理で使用する。
	DeleteByUserID(ctx context.Context, userID string) error
}
