package access

import (
	"testing"

	"naskahsync/internal/document/model"

	"github.com/stretchr/testify/assert"
)

func TestCanRead(t *testing.T) {
	doc := &model.Document{ID: "d1", Owner: "alice", SharedWith: []string{"bob@x.com", "carol@x.com"}}

	cases := []struct {
		name string
		user User
		want bool
	}{
		{"owner", User{ID: "alice", Email: "alice@x.com"}, true},
		{"owner without email", User{ID: "alice"}, true},
		{"shared", User{ID: "bob", Email: "bob@x.com"}, true},
		{"shared case-insensitive", User{ID: "carol", Email: " Carol@X.com"}, true},
		{"stranger", User{ID: "eve", Email: "eve@x.com"}, false},
		{"empty identity", User{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanRead(tc.user, doc))
			assert.Equal(t, tc.want, CanWrite(tc.user, doc), "write access mirrors read access")
		})
	}
}

func TestCanReadNilDocument(t *testing.T) {
	assert.False(t, CanRead(User{ID: "alice"}, nil))
}

func TestIsOwner(t *testing.T) {
	doc := &model.Document{Owner: "alice", SharedWith: []string{"bob@x.com"}}
	assert.True(t, IsOwner(User{ID: "alice"}, doc))
	assert.False(t, IsOwner(User{ID: "bob", Email: "bob@x.com"}, doc))
}
