package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnwrapJSONPayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced with tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without tag", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `note {"a":1} end`, `{"a":1}`},
		{"nested braces", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`},
		{"no object at all", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnwrapJSONPayload(tt.in))
		})
	}
}
