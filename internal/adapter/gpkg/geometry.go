package gpkg

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

const (
	flagLittleEndian = 0x01
	envelopeXY       = 1
	headerSize       = 8
)

var errBadBlob = errors.New("invalid geopackage geometry blob")

// envelopeBytes is the envelope length for each envelope indicator.
var envelopeBytes = map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}

// encodeGeometry builds a GeoPackage binary blob: the GP header with an XY
// envelope, followed by little-endian WKB.
func encodeGeometry(g orb.Geometry, srsID int) ([]byte, error) {
	body, err := wkb.Marshal(g, binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("marshal wkb: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + 32 + len(body))
	buf.Write([]byte{'G', 'P', 0, flagLittleEndian | envelopeXY<<1})

	b := g.Bound()
	fields := []any{int32(srsID), b.Min.X(), b.Max.X(), b.Min.Y(), b.Max.Y()}
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			return nil, err
		}
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// decodeGeometry parses a GeoPackage binary blob and returns the geometry and
// the srs id stored in its header.
func decodeGeometry(blob []byte) (orb.Geometry, int, error) {
	if len(blob) < headerSize || blob[0] != 'G' || blob[1] != 'P' {
		return nil, 0, errBadBlob
	}
	flags := blob[3]
	var order binary.ByteOrder = binary.BigEndian
	if flags&flagLittleEndian != 0 {
		order = binary.LittleEndian
	}
	srsID := int(int32(order.Uint32(blob[4:8])))

	env, ok := envelopeBytes[(flags>>1)&0x07]
	if !ok {
		return nil, 0, fmt.Errorf("%w: envelope indicator %d", errBadBlob, (flags>>1)&0x07)
	}
	start := headerSize + env
	if len(blob) < start {
		return nil, 0, fmt.Errorf("%w: truncated envelope", errBadBlob)
	}

	g, err := wkb.Unmarshal(blob[start:])
	if err != nil {
		return nil, 0, fmt.Errorf("unmarshal wkb: %w", err)
	}
	return g, srsID, nil
}
