package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopResponder struct{}

func (nopResponder) SendText([]byte)   {}
func (nopResponder) SendBinary([]byte) {}
func (nopResponder) Close()            {}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("painter")
	require.NoError(t, err)
	assert.Equal(t, Painter, role)

	role, err = ParseRole("canvas")
	require.NoError(t, err)
	assert.Equal(t, Canvas, role)

	for _, s := range []string{"", "Painter", "viewer"} {
		_, err := ParseRole(s)
		assert.ErrorIs(t, err, ErrInvalidRole, s)
	}
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Add(1, nopResponder{})

	s, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, Unknown, s.Role)
	assert.Zero(t, s.Naughty)

	found := r.Update(1, func(s *Session) bool {
		s.Role = Painter
		s.Name = "ada"
		s.Naughty++
		return true
	})
	require.True(t, found)
	s, _ = r.Get(1)
	assert.Equal(t, Painter, s.Role)
	assert.Equal(t, "ada", s.Name)
	assert.Equal(t, uint32(1), s.Naughty)

	assert.True(t, r.Remove(1))
	assert.False(t, r.Remove(1))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryUpdateCanDrop(t *testing.T) {
	r := NewRegistry()
	r.Add(1, nopResponder{})

	assert.True(t, r.Update(1, func(*Session) bool { return false }))
	_, ok := r.Get(1)
	assert.False(t, ok)
	assert.False(t, r.Update(1, func(*Session) bool { return true }))
}

func TestRegistryList(t *testing.T) {
	r := NewRegistry()
	for id := ID(5); id > 0; id-- {
		r.Add(id, nopResponder{})
	}
	for _, id := range []ID{4, 2} {
		r.Update(id, func(s *Session) bool {
			s.Role = Painter
			return true
		})
	}

	painters := r.List(Painter)
	require.Len(t, painters, 2)
	assert.Equal(t, ID(2), painters[0].ID)
	assert.Equal(t, ID(4), painters[1].ID)
	assert.Len(t, r.List(Unknown), 3)
}

func TestRegistryConcurrentReaders(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id ID) {
			defer wg.Done()
			r.Add(id, nopResponder{})
			r.Update(id, func(s *Session) bool {
				s.Role = Canvas
				return true
			})
		}(ID(i))
		go func() {
			defer wg.Done()
			r.Each(func(ID, Session) {})
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, r.Len())
	assert.Len(t, r.List(Canvas), 8)
}
