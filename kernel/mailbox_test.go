package kernel

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

func TestMailboxTryRecvEmpty(t *testing.T) {
	mb := NewMailbox()

	_, ok := mb.TryRecv()
	if ok {
		t.Fatalf("TryRecv() ok = true, want false")
	}
}

func TestMailboxTrySendFull(t *testing.T) {
	mb := NewMailbox()
	cmd := NewCommand(CmdPause)

	for i := 0; i < mailboxSlots; i++ {
		if ok := mb.TrySend(cmd); !ok {
			t.Fatalf("TrySend() ok = false at slot %d, want true", i)
		}
	}
	if ok := mb.TrySend(cmd); ok {
		t.Fatalf("TrySend() ok = true when full, want false")
	}

	for i := 0; i < mailboxSlots; i++ {
		if _, ok := mb.TryRecv(); !ok {
			t.Fatalf("TryRecv() ok = false at slot %d, want true", i)
		}
	}
	if ok := mb.TrySend(cmd); !ok {
		t.Fatalf("TrySend() after drain ok = false, want true")
	}
}

func TestCommandArgs(t *testing.T) {
	cmd := NewCommand(CmdCustom, "mode", "detached")
	args := cmd.Args()
	if len(args) != 2 || args[0] != "mode" || args[1] != "detached" {
		t.Fatalf("Args() = %q, want [mode detached]", args)
	}
	if cmd.Kind.String() != "custom" {
		t.Fatalf("Kind.String() = %q, want custom", cmd.Kind.String())
	}
}

func TestMailboxSendHonoursContext(t *testing.T) {
	mb := NewMailbox()
	for mb.TrySend(NewCommand(CmdRewind)) {
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := mb.Send(ctx, NewCommand(CmdRewind)); err == nil {
		t.Fatalf("Send() on full mailbox err = nil, want deadline error")
	}
}

func TestMailboxConcurrentProducers(t *testing.T) {
	oldProcs := runtime.GOMAXPROCS(2)
	defer runtime.GOMAXPROCS(oldProcs)

	const (
		producers = 4
		perProd   = 2_000
		total     = producers * perProd
	)

	mb := NewMailbox()

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(producers)
	for producerID := 0; producerID < producers; producerID++ {
		go func(producerID int) {
			defer wg.Done()
			<-start
			for i := 0; i < perProd; i++ {
				id := producerID*perProd + i
				_ = mb.Send(context.Background(), NewCommand(CmdCustom, strconv.Itoa(id)))
			}
		}(producerID)
	}
	close(start)

	seen := make([]bool, total)
	for got := 0; got < total; {
		cmd, ok := mb.TryRecv()
		if !ok {
			runtime.Gosched()
			continue
		}
		got++
		args := cmd.Args()
		if len(args) != 1 {
			t.Fatalf("TryRecv() args = %q, want one id", args)
		}
		id, err := strconv.Atoi(args[0])
		if err != nil || id < 0 || id >= total {
			t.Fatalf("TryRecv() id = %q, want < %d", args[0], total)
		}
		if seen[id] {
			t.Fatalf("TryRecv() duplicate id %d", id)
		}
		seen[id] = true
	}

	wg.Wait()
}
