package nnue

import (
	"fmt"

	"github.com/notnil/chess"
)

// Layout selects the feature-vector variant. It is fixed at construction
// time; a ParameterSet built for one layout cannot evaluate the other.
type Layout int

const (
	// Compact encodes piece occupancy only: 12 planes of 64 squares.
	Compact Layout = iota
	// Extended appends castling rights, the en-passant file slot and the
	// side to move to the occupancy planes.
	Extended
)

// Feature-vector dimensions.
const (
	CompactSize = 2 * 6 * 64 // 768

	castlingOffset  = CompactSize      // 768..771: WK, WQ, BK, BQ
	enPassantOffset = CompactSize + 4  // 772..787: one slot per eligible square
	sideToMoveIndex = CompactSize + 20 // 788

	ExtendedSize = CompactSize + 4 + 16 + 1 // 789
)

// Size returns the feature-vector length for the layout.
func (l Layout) Size() int {
	if l == Extended {
		return ExtendedSize
	}
	return CompactSize
}

func (l Layout) String() string {
	if l == Extended {
		return "extended"
	}
	return "compact"
}

// ParseLayout maps a layout name to its Layout value.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "compact":
		return Compact, nil
	case "extended":
		return Extended, nil
	}
	return 0, fmt.Errorf("unknown layout %q", s)
}

// FeatureVector is a one-hot encoding of a position. Exactly one bit is
// set in the first 768 indices per occupied square.
type FeatureVector []bool

// Clone returns an independent copy of the vector.
func (f FeatureVector) Clone() FeatureVector {
	c := make(FeatureVector, len(f))
	copy(c, f)
	return c
}

// PopCount returns the number of set bits in f[:n].
func (f FeatureVector) PopCount(n int) int {
	count := 0
	for _, on := range f[:n] {
		if on {
			count++
		}
	}
	return count
}

// Encoder turns positions into feature vectors for a fixed layout.
// It is stateless; encoding the same position twice yields identical
// vectors.
type Encoder struct {
	layout Layout
}

// NewEncoder creates an encoder for the given layout.
func NewEncoder(layout Layout) Encoder {
	return Encoder{layout: layout}
}

// Layout returns the encoder's layout.
func (e Encoder) Layout() Layout {
	return e.layout
}

// pieceTypeIndex maps a piece type to its 0-based plane index.
func pieceTypeIndex(t chess.PieceType) int {
	switch t {
	case chess.Pawn:
		return 0
	case chess.Knight:
		return 1
	case chess.Bishop:
		return 2
	case chess.Rook:
		return 3
	case chess.Queen:
		return 4
	case chess.King:
		return 5
	}
	panic(fmt.Sprintf("nnue: invalid piece type %v", t))
}

// FeatureIndex returns the occupancy-plane index for a piece on a square:
// 64*(pieceType + 6*color) + square, with white pieces in the upper six
// planes.
func FeatureIndex(t chess.PieceType, c chess.Color, sq chess.Square) int {
	plane := pieceTypeIndex(t)
	if c == chess.White {
		plane += 6
	}
	idx := 64*plane + int(sq)
	if idx < 0 || idx >= CompactSize {
		panic(fmt.Sprintf("nnue: feature index %d out of range for %v on %v", idx, t, sq))
	}
	return idx
}

// enPassantIndex maps an en-passant target square onto the 16-wide slot
// block. Targets only ever appear on ranks 3 and 6.
func enPassantIndex(sq chess.Square) int {
	s := int(sq)
	switch {
	case s >= 16 && s <= 23: // rank 3
		return enPassantOffset + (s - 16)
	case s >= 40 && s <= 47: // rank 6
		return enPassantOffset + 8 + (s - 40)
	}
	panic(fmt.Sprintf("nnue: en passant square %v not on an eligible rank", sq))
}

// Encode produces the feature vector for a position. The position itself
// comes from the rules library; malformed FEN input never reaches here.
func (e Encoder) Encode(pos *chess.Position) FeatureVector {
	v := make(FeatureVector, e.layout.Size())

	board := pos.Board()
	for sq := chess.A1; sq <= chess.H8; sq++ {
		piece := board.Piece(sq)
		if piece == chess.NoPiece {
			continue
		}
		v[FeatureIndex(piece.Type(), piece.Color(), sq)] = true
	}

	if e.layout == Compact {
		return v
	}

	rights := pos.CastleRights()
	v[castlingOffset] = rights.CanCastle(chess.White, chess.KingSide)
	v[castlingOffset+1] = rights.CanCastle(chess.White, chess.QueenSide)
	v[castlingOffset+2] = rights.CanCastle(chess.Black, chess.KingSide)
	v[castlingOffset+3] = rights.CanCastle(chess.Black, chess.QueenSide)

	if ep := pos.EnPassantSquare(); ep != chess.NoSquare {
		v[enPassantIndex(ep)] = true
	}

	v[sideToMoveIndex] = pos.Turn() == chess.White

	return v
}

// Diff returns the indices that turned on and off between two vectors of
// equal length. The two sets are disjoint by construction.
func Diff(prev, next FeatureVector) (on, off []int) {
	for i := range next {
		switch {
		case next[i] && !prev[i]:
			on = append(on, i)
		case !next[i] && prev[i]:
			off = append(off, i)
		}
	}
	return on, off
}
