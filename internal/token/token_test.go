package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"camel case", "getUserName", []string{"get", "user", "name"}},
		{"acronym run", "XMLParser", []string{"xml", "parser"}},
		{"snake case", "parse_http_request", []string{"parse", "http", "request"}},
		{"kebab in text", "my-chunk-id", []string{"my", "chunk", "id"}},
		{"letter digit boundary", "utf8Decoder", []string{"utf", "decoder"}},
		{"digit run survives", "sha256", []string{"sha", "256"}},
		{"short tokens dropped", "a.b(c, d)", nil},
		{"mixed source line", "func AuthService.login()", []string{"func", "auth", "service", "login"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.input)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitDeterministic(t *testing.T) {
	const input = "IncrementalIndexer publishes project_index generation 42"
	first := Split(input)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Split(input))
	}
}

func TestSplitIdentifierPreservesCase(t *testing.T) {
	assert.Equal(t, []string{"get", "User", "Name"}, SplitIdentifier("getUserName"))
	assert.Equal(t, []string{"HTTP", "Handler"}, SplitIdentifier("HTTPHandler"))
}

func TestStopSet(t *testing.T) {
	set := StopSet([]string{"The", "func"})
	_, ok := set["the"]
	assert.True(t, ok)
	_, ok = set["func"]
	assert.True(t, ok)
	_, ok = set["other"]
	assert.False(t, ok)
}
