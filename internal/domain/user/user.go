package user

type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	RoleCode     RoleCode
}
