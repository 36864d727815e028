package dialogue

import (
	"context"
	log "log/slog"
)

// Command is an out-of-band request, applied between cycles.
type Command string

const (
	CommandReset   Command = "reset"
	CommandTrigger Command = "trigger"
)

func (c Command) IsValid() bool {
	return c == CommandReset || c == CommandTrigger
}

// Submit queues cmd for the control loop. It reports false when the queue is
// full or cmd is unknown.
func (c *Controller) Submit(cmd Command) bool {
	if !cmd.IsValid() {
		return false
	}
	select {
	case c.commands <- cmd:
		return true
	default:
		log.Warn("Command queue full", "cmd", cmd)
		return false
	}
}

// drainCommands applies queued resets and reports whether a trigger was
// queued. Several triggers collapse into one turn.
func (c *Controller) drainCommands(ctx context.Context) (trigger bool) {
	for {
		select {
		case cmd := <-c.commands:
			log.Info("Command", "cmd", cmd)
			switch cmd {
			case CommandReset:
				c.Reset(ctx)
			case CommandTrigger:
				trigger = true
			}
		default:
			return trigger
		}
	}
}
