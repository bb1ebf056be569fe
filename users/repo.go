package users

type UserRepo interface {
	Upsert(user *User) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	SetBlocked(email string, blocked bool) error
	SetLastLogin(email string) error
}
