package transport

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStdioServeEchoesOneResponsePerLine(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	s := NewStdioServer(d, nil)

	input := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/call"}` + "\n",
	)
	var out bytes.Buffer

	err := s.Serve(context.Background(), input, &out)
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var lines int
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 2, lines)
}

func TestStdioServeSkipsBlankLines(t *testing.T) {
	t.Parallel()

	d := &fakeDispatcher{}
	s := NewStdioServer(d, nil)

	input := strings.NewReader("\n" + `{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n\n")
	var out bytes.Buffer

	err := s.Serve(context.Background(), input, &out)
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var lines int
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 1, lines)
}
