package database

import (
	"fmt"
	"strings"
)

// Name is the logical database name a connection is keyed by.
type Name string

// GlobalDatabase is the shared database holding companies and platform users.
const GlobalDatabase Name = "GLOBAL"

// Scope tells which model set a database carries.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeTenant
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "tenant"
}

// Scope returns the scope of the database.
func (n Name) Scope() Scope {
	if n == GlobalDatabase {
		return ScopeGlobal
	}
	return ScopeTenant
}

// Validate rejects names MongoDB would refuse.
func (n Name) Validate() error {
	if n == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(n) > 63 {
		return fmt.Errorf("%w: %q is longer than 63 bytes", ErrInvalidName, n)
	}
	if strings.ContainsAny(string(n), "/\\. \"$*<>:|?\x00") {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidName, n)
	}
	return nil
}
