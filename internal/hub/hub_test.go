package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain returns every payload currently queued on the connection.
func drain(c *Conn) [][]byte {
	var out [][]byte
	for {
		select {
		case payload, ok := <-c.Outbound():
			if !ok {
				return out
			}
			out = append(out, payload)
		default:
			return out
		}
	}
}

func TestHub_ToConn(t *testing.T) {
	h := New()
	alice := NewConn("c1", "alice")
	bob := NewConn("c2", "bob")
	h.Add(alice)
	h.Add(bob)

	h.ToConn("c1", []byte("hello"))

	require.Len(t, drain(alice), 1)
	assert.Empty(t, drain(bob))
}

func TestHub_ToUsersExcludesSender(t *testing.T) {
	h := New()
	alice := NewConn("c1", "alice")
	bob := NewConn("c2", "bob")
	carol := NewConn("c3", "carol")
	h.Add(alice)
	h.Add(bob)
	h.Add(carol)

	h.ToUsers([]string{"alice", "bob"}, "alice", []byte("typing"))

	assert.Empty(t, drain(alice))
	assert.Len(t, drain(bob), 1)
	assert.Empty(t, drain(carol))
}

func TestHub_ToAll(t *testing.T) {
	h := New()
	alice := NewConn("c1", "alice")
	bob := NewConn("c2", "bob")
	h.Add(alice)
	h.Add(bob)

	h.ToAll([]byte("presence"))

	assert.Len(t, drain(alice), 1)
	assert.Len(t, drain(bob), 1)
}

func TestHub_RemoveClosesOutbound(t *testing.T) {
	h := New()
	alice := NewConn("c1", "alice")
	h.Add(alice)

	h.Remove("c1")

	_, ok := <-alice.Outbound()
	assert.False(t, ok)

	// Delivering to a removed connection is a no-op, not a panic.
	h.ToConn("c1", []byte("late"))
	h.ToUsers([]string{"alice"}, "", []byte("late"))
}

func TestHub_RemoveUnknownIsNoop(t *testing.T) {
	h := New()
	h.Remove("ghost")
}

func TestHub_ToUsersUnknownUserIsSkipped(t *testing.T) {
	h := New()
	alice := NewConn("c1", "alice")
	h.Add(alice)

	h.ToUsers([]string{"alice", "ghost"}, "", []byte("hi"))
	assert.Len(t, drain(alice), 1)
}
