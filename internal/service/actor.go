package service

import (
	"github.com/Gopher0727/Eiga/internal/model"
)

// Actor is the caller identity handed over by the session layer. The core
// never authenticates it, it only authorizes against ID and Role.
type Actor struct {
	ID       string
	Username string
	Role     string
}

func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// canModify reports whether a may edit or delete content owned by authorID.
func (a Actor) canModify(authorID string) bool {
	return a.IsAdmin() || (a.ID != "" && a.ID == authorID)
}
