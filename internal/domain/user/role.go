package user

import (
	"errors"
	"strings"
)

type RoleCode string

const (
	RoleCodeAdmin    RoleCode = "ADMIN"
	RoleCodeCustomer RoleCode = "CUSTOMER"
)

var ErrInvalidRoleCode = errors.New("invalid role code")

func (c RoleCode) IsValid() bool {
	return c == RoleCodeAdmin || c == RoleCodeCustomer
}

func (c RoleCode) IsAdmin() bool {
	return c == RoleCodeAdmin
}

// ParseRoleCode converts a role from a token or the database.
func ParseRoleCode(s string) (RoleCode, error) {
	c := RoleCode(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", ErrInvalidRoleCode
	}
	return c, nil
}
