package models

import "github.com/uptrace/bun"

// User is a stored credential: a mail address and an opaque password hash
// matched byte-for-byte at verification time.
type User struct {
	bun.BaseModel `bun:"table:user,alias:u"`

	ID             int64  `bun:"id,pk,autoincrement" json:"id"`
	Mail           string `bun:"mail,notnull,unique" json:"mail"`
	HashedPassword string `bun:"hashed_password,notnull" json:"-"`
}
