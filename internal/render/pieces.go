package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece outlines on a 45x45 canvas. Colours are substituted per side.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="14" r="5.5"/>
<path d="M16 36 L18.5 22 Q22.5 19 26.5 22 L29 36 Z"/>
<rect x="11" y="35" width="23" height="5" rx="1.5"/>`,
	nchess.Rook: `<path d="M11 9 H15 V12 H20 V9 H25 V12 H30 V9 H34 V16 L31 19 V31 L34 34 V39 H11 V34 L14 31 V19 L11 16 Z"/>`,
	nchess.Knight: `<path d="M14 39 L15 30 Q12 24 17 19 L19 12 L22 15 L25 10 Q35 14 33 28 L32 39 Z"/>
<circle cx="22" cy="18" r="1.2" fill="EYE"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5"/>
<path d="M22.5 11 Q31 18 27.5 27 L29 32 H16 L17.5 27 Q14 18 22.5 11 Z"/>
<rect x="10" y="33" width="25" height="6" rx="2"/>`,
	nchess.Queen: `<path d="M9 14 L13 31 H32 L36 14 L29 25 L26 11 L22.5 25 L19 11 L16 25 Z"/>
<circle cx="9" cy="12" r="2.5"/><circle cx="19" cy="9" r="2.5"/><circle cx="26" cy="9" r="2.5"/><circle cx="36" cy="12" r="2.5"/>
<rect x="11" y="32" width="23" height="7" rx="2"/>`,
	nchess.King: `<path d="M21 4 H24 V8 H28 V11 H24 V15 H21 V11 H17 V8 H21 Z"/>
<path d="M12 32 Q7 22 15 18 Q20 16 22.5 22 Q25 16 30 18 Q38 22 33 32 Z"/>
<rect x="11" y="32" width="23" height="7" rx="2"/>`,
}

func pieceSVG(p nchess.Piece) (string, bool) {
	shape, ok := pieceShapes[p.Type()]
	if !ok {
		return "", false
	}
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if p.Color() == nchess.Black {
		fill, stroke = "#262626", "#0a0a0a"
	}
	eye := stroke
	if p.Color() == nchess.Black {
		eye = "#f8f8f8"
	}
	shape = strings.ReplaceAll(shape, "EYE", eye)
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">
<g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">%s</g></svg>`, fill, stroke, shape), true
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	src, ok := pieceSVG(piece)
	if !ok {
		return nil, fmt.Errorf("no outline for piece %v", piece)
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
