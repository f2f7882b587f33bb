package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubPII(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"email", "escríbeme a maria@example.com por favor", "escríbeme a [EMAIL] por favor"},
		{"peru mobile", "mi número es 987654321", "mi número es [PHONE]"},
		{"peru mobile with prefix", "llámame al +51 987 654 321", "llámame al [PHONE]"},
		{"international", "call +14155551234", "call [PHONE]"},
		{"clean", "quiero rosas rojas para mañana", "quiero rosas rojas para mañana"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ScrubPII(tc.in))
		})
	}
}

func TestScrubMessages(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "mi correo es juan@mail.pe"},
		{Role: "assistant", Content: "anotado"},
	}
	ScrubMessages(msgs)
	assert.Equal(t, "mi correo es [EMAIL]", msgs[0].Content)
	assert.Equal(t, "anotado", msgs[1].Content)
}

func TestHashContact(t *testing.T) {
	h := HashContact("51987654321")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashContact("51987654321"))
	assert.NotEqual(t, h, HashContact("51911111111"))
}
