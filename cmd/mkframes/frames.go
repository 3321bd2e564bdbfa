package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"

	"specks/core/live"
	"specks/core/services/logger"
)

// writeFrames renders cfg.Steps orbit frames into dir, perFile frames to each
// numbered file. Files are written under a temporary name and renamed so a
// watching viewer never reads a partial file.
func writeFrames(dir string, cfg live.OrbitConfig, perFile int) (int, error) {
	if cfg.Steps <= 0 {
		return 0, errors.New("write needs --steps > 0")
	}
	if perFile <= 0 {
		perFile = cfg.Steps
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	cfg.Rate = 0
	src := live.NewOrbitSource("mkframes", live.Env{Log: logger.Discard()}, live.GateOptions{}, cfg)
	defer src.Close()

	files := 0
	for start := 0; start < cfg.Steps; start += perFile {
		name := filepath.Join(dir, fmt.Sprintf("%05d.frames", files))
		if err := writeFile(name, func(w *bufio.Writer) error {
			for i := start; i < min(start+perFile, cfg.Steps); i++ {
				if err := live.EncodeText(w, src.FrameAt(float64(i)*cfg.Dt)); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func writeFile(name string, fill func(*bufio.Writer) error) error {
	tmp := name + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, name)
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	WriteBufferSize: 64 * 1024,
}

// streamHandler upgrades each request and streams the orbit system to it as
// binary frame messages, starting from time zero.
func streamHandler(ctx context.Context, cfg live.OrbitConfig, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("upgrade failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		defer conn.Close()
		log.Info("client connected", "remote", r.RemoteAddr)

		src := live.NewOrbitSource("mkframes", live.Env{Log: log}, live.GateOptions{}, live.OrbitConfig{
			Bodies: cfg.Bodies,
			Dt:     cfg.Dt,
			Seed:   cfg.Seed,
			Label:  cfg.Label,
		})
		defer src.Close()
		tick, stop := pace(cfg.Rate)
		defer stop()

		for i := 0; cfg.Steps <= 0 || i < cfg.Steps; i++ {
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-r.Context().Done():
					return
				case <-tick:
				}
			}
			msg := live.EncodeWire(src.FrameAt(float64(i) * cfg.Dt))
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				log.Info("client gone", "remote", r.RemoteAddr, "sent", i, "err", err)
				return
			}
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		log.Info("stream complete", "remote", r.RemoteAddr, "frames", cfg.Steps)
	})
}

func serve(ctx context.Context, addr string, cfg live.OrbitConfig, log *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: streamHandler(ctx, cfg, log), ReadHeaderTimeout: 5 * time.Second}
	log.Info("serving frames", "url", "ws://"+ln.Addr().String()+"/")
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
