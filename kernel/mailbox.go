package kernel

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
)

// MaxCommandBytes is the maximum payload size of a command.
const MaxCommandBytes = 256

// CommandKind identifies what a producer should do with a command.
type CommandKind uint8

const (
	CmdNone CommandKind = iota
	CmdPause
	CmdResume
	CmdRewind
	CmdReload
	CmdCustom
)

func (k CommandKind) String() string {
	switch k {
	case CmdPause:
		return "pause"
	case CmdResume:
		return "resume"
	case CmdRewind:
		return "rewind"
	case CmdReload:
		return "reload"
	case CmdCustom:
		return "custom"
	default:
		return "none"
	}
}

// Command is a fixed-size command envelope.
type Command struct {
	Kind CommandKind
	Len  uint16
	Data [MaxCommandBytes]byte
}

// NewCommand builds a command carrying text arguments.
// Arguments longer than MaxCommandBytes are truncated.
func NewCommand(kind CommandKind, args ...string) Command {
	cmd := Command{Kind: kind}
	s := strings.Join(args, " ")
	if len(s) > MaxCommandBytes {
		s = s[:MaxCommandBytes]
	}
	cmd.Len = uint16(copy(cmd.Data[:], s))
	return cmd
}

// Args returns the text arguments carried by the command.
func (c Command) Args() []string {
	return strings.Fields(string(c.Data[:c.Len]))
}

const mailboxSlots = 16

type mailboxSlot struct {
	seq atomic.Uint64
	cmd Command
}

// Mailbox is a bounded multi-producer, single-consumer command queue.
//
// Each slot carries a sequence number so a consumer never reads a slot whose
// producer reserved it but has not finished writing it.
// The zero value is not ready; use NewMailbox.
type Mailbox struct {
	_     [0]func() // prevent accidental copying.
	head  atomic.Uint64
	tail  atomic.Uint64
	slots [mailboxSlots]mailboxSlot
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	mb := &Mailbox{}
	for i := range mb.slots {
		mb.slots[i].seq.Store(uint64(i))
	}
	return mb
}

// TrySend attempts to enqueue a command, returning false if the mailbox is full.
func (mb *Mailbox) TrySend(cmd Command) bool {
	for {
		pos := mb.head.Load()
		s := &mb.slots[pos%mailboxSlots]
		delta := int64(s.seq.Load()) - int64(pos)
		switch {
		case delta == 0:
			if mb.head.CompareAndSwap(pos, pos+1) {
				s.cmd = cmd
				s.seq.Store(pos + 1)
				return true
			}
		case delta < 0:
			return false
		default:
			runtime.Gosched()
		}
	}
}

// Send enqueues a command, retrying until it succeeds or ctx is done.
func (mb *Mailbox) Send(ctx context.Context, cmd Command) error {
	for !mb.TrySend(cmd) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		runtime.Gosched()
	}
	return nil
}

// TryRecv attempts to dequeue one command, returning false if empty.
func (mb *Mailbox) TryRecv() (Command, bool) {
	pos := mb.tail.Load()
	s := &mb.slots[pos%mailboxSlots]
	if int64(s.seq.Load())-int64(pos+1) < 0 {
		return Command{}, false
	}
	cmd := s.cmd
	s.seq.Store(pos + mailboxSlots)
	mb.tail.Store(pos + 1)
	return cmd, true
}

// Drain delivers every queued command to fn and returns how many were handled.
func (mb *Mailbox) Drain(fn func(Command)) int {
	n := 0
	for {
		cmd, ok := mb.TryRecv()
		if !ok {
			return n
		}
		n++
		if fn != nil {
			fn(cmd)
		}
	}
}
