package ipc

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// unix socket paths are length-limited; keep it short
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestSendAndReply(t *testing.T) {
	path := socketPath(t)
	got := make(chan string, 1)
	srv, err := Listen(path, func(m ControlMessage) ControlReply {
		got <- m.Cmd
		return ControlReply{OK: true, State: "listening", Turns: 2}
	})
	require.NoError(t, err)
	defer srv.Close()

	reply, err := Send(path, CmdStatus)
	require.NoError(t, err)
	assert.Equal(t, ControlReply{OK: true, State: "listening", Turns: 2}, reply)
	assert.Equal(t, CmdStatus, <-got)
}

func TestListen_ReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	srv, err := Listen(path, func(ControlMessage) ControlReply { return ControlReply{OK: true} })
	require.NoError(t, err)
	defer srv.Close()

	reply, err := Send(path, CmdReset)
	require.NoError(t, err)
	assert.True(t, reply.OK)
}

func TestMalformedMessage(t *testing.T) {
	path := socketPath(t)
	srv, err := Listen(path, func(ControlMessage) ControlReply {
		t.Error("handler must not run")
		return ControlReply{}
	})
	require.NoError(t, err)
	defer srv.Close()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("not json\n"))
	require.NoError(t, err)

	var reply ControlReply
	require.NoError(t, json.NewDecoder(conn).Decode(&reply))
	assert.False(t, reply.OK)
	assert.NotEmpty(t, reply.Error)
}

func TestClose_RemovesSocket(t *testing.T) {
	path := socketPath(t)
	srv, err := Listen(path, func(ControlMessage) ControlReply { return ControlReply{} })
	require.NoError(t, err)
	require.NoError(t, srv.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = Send(path, CmdTrigger)
	assert.Error(t, err)
}
