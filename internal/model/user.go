// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHash はbcryptによるソルト付きハッシュ。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser はクライアントに公開してよいユーザー情報を表す。
// パスワードハッシュは含まない。
type PublicUser struct {
	ID        string
	Username  string
	CreatedAt time.Time
}

// Public はUserからPublicUserを生成する。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		CreatedAt: u.CreatedAt,
	}
}

// Session はユーザーのログインセッションを表す。
// セッションは完全に存在するか完全に不在かのいずれかであり、
// 部分的に populate された状態は存在しない。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
