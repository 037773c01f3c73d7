package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundTrip(t *testing.T) {
	got := make(chan ControlMessage, 1)
	require.NoError(t, StartServer(func(msg ControlMessage) {
		got <- msg
	}))

	require.NoError(t, SendCommand("say", "Привет всем!"))

	select {
	case msg := <-got:
		assert.Equal(t, "say", msg.Cmd)
		assert.Equal(t, "Привет всем!", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("command not delivered")
	}
}
