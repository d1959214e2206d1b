package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost はパスワードハッシュのコストパラメータ。
// 元実装は非暗号学的なローリングチェックサムを「パスワードハッシュ」として
// 使用していたが、これはセキュリティ欠陥であり再現しない。
// ソルト付きKDF（bcrypt）へ置き換えている。
const bcryptCost = 12

// HashPassword はパスワードからbcryptベリファイアを導出する。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword はパスワードがハッシュと一致するかを検証する。
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
