package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/cheese-chess-sync/internal/authority"
	"github.com/park285/cheese-chess-sync/internal/boardfeed"
	"github.com/park285/cheese-chess-sync/internal/domain"
	"github.com/park285/cheese-chess-sync/pkg/chessdto"
)

func main() {
	baseURL := os.Getenv("AUTHORITY_BASE_URL")
	wsURL := os.Getenv("BOARD_WS_URL")

	if baseURL == "" {
		log.Fatal("AUTHORITY_BASE_URL is required")
	}

	client := authority.NewClient(baseURL, authority.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	list, err := client.ListAutomatedPlayers(ctx)
	if err != nil {
		log.Printf("/ai-plugins error: %v", err)
	} else {
		for _, p := range list {
			log.Printf("player %s: %s", p.Name, p.Description)
		}
	}

	s, err := client.CreateSession(ctx, domain.Seats{})
	if err != nil {
		log.Printf("/games error: %s", authority.Detail(err))
	} else {
		got, err := client.FetchState(ctx, s.ID)
		if err != nil {
			log.Printf("/games/%s error: %s", s.ID, authority.Detail(err))
		} else {
			log.Printf("game ok: id=%s fen=%s turn=%s legal=%d", got.ID, got.Position, got.Turn, len(got.LegalMoves))
		}
	}

	if wsURL == "" {
		log.Println("BOARD_WS_URL not set; skipping board feed check")
		return
	}

	feed := boardfeed.NewClient(wsURL, 5)
	feed.OnStateChange(func(state boardfeed.ConnState) {
		log.Printf("feed state: %s", state)
	})
	feed.OnFrame(func(f chessdto.Frame) {
		switch {
		case f.View != nil:
			fmt.Printf("view fen=%s status=%q thinking=%v\n", f.View.FEN, f.View.Status, f.View.Thinking)
		case f.Error != "":
			fmt.Printf("error %s\n", f.Error)
		default:
			fmt.Printf("frame %s\n", f.T)
		}
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := feed.Connect(cctx); err != nil {
		log.Printf("feed connect error: %v", err)
		return
	}
	_ = feed.Send(cctx, chessdto.Frame{T: chessdto.FrameListAIs})

	// Observe for a short window
	t := time.NewTimer(10 * time.Second)
	<-t.C

	_ = feed.Close(context.Background())
}
