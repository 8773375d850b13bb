// Package render draws a board snapshot as PNG for clients that cannot render FEN themselves.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/cheese-chess-sync/internal/domain"
)

var ErrBadPosition = errors.New("render: unreadable position")

type Options struct {
	// Highlight lists squares (e.g. "e2", "e4") tinted as the last move.
	Highlight []string
	Caption   string
	// Flip draws the board from black's side.
	Flip bool
}

type Renderer struct {
	SquareSize int
}

func New() *Renderer { return &Renderer{SquareSize: 64} }

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	highlightFill   = color.NRGBA{R: 255, G: 255, B: 0, A: 102}
	captionPanel    = color.NRGBA{R: 28, G: 31, B: 46, A: 255}
	captionText     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateColor = color.NRGBA{R: 60, G: 60, B: 60, A: 255}
	backgroundColor = color.NRGBA{R: 245, G: 242, B: 235, A: 255}
)

const (
	margin        = 20
	captionHeight = 24
)

func (r *Renderer) RenderPNG(ctx context.Context, pos domain.Position, opts Options) ([]byte, error) {
	board, err := boardOf(pos)
	if err != nil {
		return nil, err
	}
	squareSize := r.SquareSize
	if squareSize <= 0 {
		squareSize = 64
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	boardSize := squareSize * 8
	top := margin + captionHeight
	img := image.NewRGBA(image.Rect(0, 0, boardSize+margin*2, boardSize+top+margin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)
	origin := image.Point{X: margin, Y: top}

	drawCaption(img, opts.Caption)
	drawSquares(img, squareSize, origin, opts.Flip)
	for _, name := range opts.Highlight {
		if sq, ok := parseSquare(name); ok {
			overlay(img, squareRect(sq, squareSize, origin, opts.Flip), highlightFill)
		}
	}
	if err := drawPieces(img, board, squareSize, origin, opts.Flip); err != nil {
		return nil, err
	}
	drawCoordinates(img, squareSize, origin, opts.Flip)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func boardOf(pos domain.Position) (*nchess.Board, error) {
	fen := strings.TrimSpace(pos.String())
	if fen == "" {
		return nil, ErrBadPosition
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPosition, err)
	}
	return nchess.NewGame(opt).Position().Board(), nil
}

func parseSquare(name string) (nchess.Square, bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), true
}

func squareRect(sq nchess.Square, squareSize int, origin image.Point, flip bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flip {
		col, row = 7-col, 7-row
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawSquares(dst *image.RGBA, squareSize int, origin image.Point, flip bool) {
	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			sq := nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
			clr := lightSquare
			if (file+rank)%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, squareRect(sq, squareSize, origin, flip), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst *image.RGBA, board *nchess.Board, squareSize int, origin image.Point, flip bool) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		rect := squareRect(sq, squareSize, origin, flip)
		imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func overlay(dst *image.RGBA, rect image.Rectangle, clr color.Color) {
	imagedraw.Draw(dst, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawCaption(dst *image.RGBA, caption string) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return
	}
	panel := image.Rect(margin, margin/2, dst.Bounds().Dx()-margin, margin/2+captionHeight-4)
	imagedraw.Draw(dst, panel, image.NewUniform(captionPanel), image.Point{}, imagedraw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(captionText), Face: face}
	maxWidth := panel.Dx() - 12
	for drawer.MeasureString(caption).Round() > maxWidth && len(caption) > 3 {
		caption = caption[:len(caption)-4] + "..."
	}
	baseline := panel.Min.Y + (panel.Dy()+face.Metrics().Ascent.Ceil())/2 - 1
	drawer.Dot = fixed.P(panel.Min.X+6, baseline)
	drawer.DrawString(caption)
}

func drawCoordinates(dst *image.RGBA, squareSize int, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(coordinateColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*squareSize
	for i := 0; i < 8; i++ {
		file := string(rune('a' + i))
		rank := string(rune('8' - i))
		if flip {
			file = string(rune('h' - i))
			rank = string(rune('1' + i))
		}
		drawCentered(drawer, file, origin.X+i*squareSize+squareSize/2, boardEnd+ascent+2)
		drawCentered(drawer, rank, origin.X-margin/2, origin.Y+i*squareSize+squareSize/2+ascent/2)
	}
}

func drawCentered(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
