// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "admin"
	// RoleUser は一般ユーザーロール。
	RoleUser Role = "user"
	// RoleCreator はコース作成者ロール。
	RoleCreator Role = "creator"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleCreator:
		return true
	default:
		return false
	}
}

// User はログイン中のユーザー（セッションの主体）を表す。
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         Role      `json:"role"`
	IsVerified   bool      `json:"isVerified"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Session はサーバー側で発行するログインセッションを表す。
// IDはクライアントに渡す認証トークンそのもの。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// LoginResult は認証コラボレーターのログイン応答。
type LoginResult struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
