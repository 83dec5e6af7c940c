package rtmp

import "io"

type Handshaker interface {
	Handshake(reader io.Reader, writer WriteFlusher) error
}

// Role tells which side of the connection we are.
type Role uint8

const (
	// RoleActive opened the connection.
	RoleActive Role = iota
	// RolePassive accepted it.
	RolePassive
)

func (r Role) String() string {
	if r == RolePassive {
		return "passive"
	}
	return "active"
}

func handshakerFor(role Role) Handshaker {
	if role == RolePassive {
		return PassiveHandshaker{}
	}
	return ActiveHandshaker{}
}
