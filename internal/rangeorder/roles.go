package rangeorder

import "github.com/ethereum/go-ethereum/common"

type Role string

const (
	RoleManager  Role = "manager"
	RoleGuardian Role = "guardian"
	RoleKeeper   Role = "keeper"
	// RoleAny is satisfied by every caller.
	RoleAny Role = "any"
)

// Authority answers role membership questions.
type Authority interface {
	HasRole(addr common.Address, role Role) bool
}

// StaticAuthority is a fixed role table.
type StaticAuthority struct {
	roles map[Role]map[common.Address]struct{}
}

func NewStaticAuthority(assignments map[Role][]common.Address) *StaticAuthority {
	a := &StaticAuthority{roles: make(map[Role]map[common.Address]struct{})}
	for role, addrs := range assignments {
		for _, addr := range addrs {
			a.Grant(addr, role)
		}
	}
	return a
}

// Grant adds addr to role. Not safe for use concurrently with HasRole.
func (a *StaticAuthority) Grant(addr common.Address, role Role) {
	members, ok := a.roles[role]
	if !ok {
		members = make(map[common.Address]struct{})
		a.roles[role] = members
	}
	members[addr] = struct{}{}
}

func (a *StaticAuthority) HasRole(addr common.Address, role Role) bool {
	if role == RoleAny {
		return true
	}
	_, ok := a.roles[role][addr]
	return ok
}
