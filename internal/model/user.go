package model

import "time"

type Role string

const (
	RoleProvider Role = "provider"
	RoleDoctor   Role = "doctor"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleProvider, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Role         Role      `db:"role" json:"role"`
	APITokenHash string    `db:"api_token_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

type CreateUserParams struct {
	Name         string
	Role         Role
	APITokenHash string
}
