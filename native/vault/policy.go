package vault

import "yieldvault/crypto"

// StaticAuthorizer grants every privileged operation to a single operator
// address. It is the default policy wired by the daemon; richer policies plug
// in through the Authorizer interface.
type StaticAuthorizer struct {
	operator crypto.Address
}

// NewStaticAuthorizer builds a policy that authorizes only the operator.
func NewStaticAuthorizer(operator crypto.Address) *StaticAuthorizer {
	return &StaticAuthorizer{operator: operator}
}

// Allow implements the Authorizer interface.
func (a *StaticAuthorizer) Allow(caller crypto.Address, _ string) bool {
	if a == nil {
		return false
	}
	return a.operator.Equal(caller)
}
