package model

import "time"

// Tier is the account's subscription tier.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
)

// Account represents a billing account. Credits form a single unified pool
// regardless of tier-specific generation modes; Version increments on every
// credit mutation and guards the optimistic-concurrency decrement.
type Account struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	Tier      Tier      `db:"tier" json:"tier"`
	Credits   int       `db:"credits" json:"credits"`
	Version   int64     `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
