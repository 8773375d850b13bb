package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/park285/cheese-chess-sync/internal/domain"
)

func TestRenderPNGHighlightsSquares(t *testing.T) {
	r := New()
	data, err := r.RenderPNG(context.Background(), domain.StartFEN, Options{Highlight: []string{"e3", "zz"}, Caption: "Game ID: g1. It's white's turn."})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := 64*8 + margin*2
	if img.Bounds().Dx() != want {
		t.Fatalf("unexpected width %d, want %d", img.Bounds().Dx(), want)
	}

	sq, _ := parseSquare("e3")
	rect := squareRect(sq, 64, pointAt(margin, margin+captionHeight), false)
	plain, _ := parseSquare("e5")
	plainRect := squareRect(plain, 64, pointAt(margin, margin+captionHeight), false)
	hr, hg, hb, _ := img.At(rect.Min.X+2, rect.Min.Y+2).RGBA()
	pr, pg, pb, _ := img.At(plainRect.Min.X+2, plainRect.Min.Y+2).RGBA()
	if hr == pr && hg == pg && hb == pb {
		t.Fatalf("highlighted square looks identical to a plain one")
	}
}

func TestRenderPNGRejectsGarbage(t *testing.T) {
	if _, err := New().RenderPNG(context.Background(), "", Options{}); !errors.Is(err, ErrBadPosition) {
		t.Fatalf("expected ErrBadPosition, got %v", err)
	}
}

func TestParseSquare(t *testing.T) {
	for _, bad := range []string{"", "e9", "i1", "e", "e10"} {
		if _, ok := parseSquare(bad); ok {
			t.Fatalf("parseSquare(%q) should fail", bad)
		}
	}
	sq, ok := parseSquare("H8")
	if !ok || sq.String() != "h8" {
		t.Fatalf("parseSquare(H8) = %v %v", sq, ok)
	}
}

func pointAt(x, y int) image.Point { return image.Point{X: x, Y: y} }
