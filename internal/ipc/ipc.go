// Package ipc is the local control socket of the daemon.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/sophie.sock"

// Commands understood by the daemon.
const (
	CmdReset   = "reset"
	CmdTrigger = "trigger"
	CmdStatus  = "status"
)

const ioTimeout = 5 * time.Second

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type ControlReply struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
	Turns int    `json:"turns"`
	Error string `json:"error,omitempty"`
}

type Handler func(ControlMessage) ControlReply

type Server struct {
	path string
	ln   net.Listener
}

// Listen replaces any stale socket at path and serves h on it.
func Listen(path string, h Handler) (*Server, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("ipc: remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("ipc: listen: %w", err)
	}

	s := &Server{path: path, ln: ln}
	go s.serve(h)
	return s, nil
}

func (s *Server) serve(h Handler) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Warn("IPC accept failed", "err", err)
			continue
		}
		go handleConn(conn, h)
	}
}

func (s *Server) Close() error {
	err := s.ln.Close()
	_ = os.Remove(s.path)
	return err
}

func handleConn(conn net.Conn, h Handler) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		log.Warn("Bad control message", "err", err)
		_ = json.NewEncoder(conn).Encode(ControlReply{Error: "malformed message"})
		return
	}
	log.Debug("Control message", "cmd", msg.Cmd)

	if err := json.NewEncoder(conn).Encode(h(msg)); err != nil {
		log.Warn("Failed to reply on control socket", "err", err)
	}
}

// Send delivers cmd to the daemon listening on path and waits for its reply.
func Send(path, cmd string) (ControlReply, error) {
	conn, err := net.DialTimeout("unix", path, ioTimeout)
	if err != nil {
		return ControlReply{}, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return ControlReply{}, fmt.Errorf("ipc: send: %w", err)
	}

	var reply ControlReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return ControlReply{}, fmt.Errorf("ipc: read reply: %w", err)
	}
	return reply, nil
}
