package firmware

import (
	"bufio"
	"bytes"
	"encoding/hex"

	"github.com/ardnew/tyhs/pkg"
)

// Intel HEX record types, per spec.md §4.12.
const (
	hexRecData               = 0x00
	hexRecEOF                = 0x01
	hexRecExtendedSegment    = 0x02
	hexRecStartSegment       = 0x03
	hexRecExtendedLinear     = 0x04
	hexRecStartLinear        = 0x05
)

// LoadIntelHex parses an Intel HEX file into a Firmware. Record type 5
// (start linear address) is parsed for validation but carries no segment
// data and is ignored.
func LoadIntelHex(filename string, data []byte) (*Firmware, error) {
	var segs []Segment
	var upperAddr uint32

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	sawEOF := false

	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] != ':' {
			return nil, log.Errorf(pkg.Parse, "%s:%d: record does not start with ':'", filename, lineNo)
		}
		raw, err := hex.DecodeString(string(line[1:]))
		if err != nil {
			return nil, log.Errorf(pkg.Parse, "%s:%d: invalid hex digits", filename, lineNo)
		}
		if len(raw) < 5 {
			return nil, log.Errorf(pkg.Parse, "%s:%d: record too short", filename, lineNo)
		}

		count := int(raw[0])
		addr := uint32(raw[1])<<8 | uint32(raw[2])
		recType := raw[3]
		if len(raw) != 5+count {
			return nil, log.Errorf(pkg.Parse, "%s:%d: byte count mismatch", filename, lineNo)
		}
		payload := raw[4 : 4+count]
		checksum := raw[4+count]

		var sum byte
		for _, b := range raw[:4+count] {
			sum += b
		}
		if byte(-sum) != checksum {
			return nil, log.Errorf(pkg.Parse, "%s:%d: checksum mismatch", filename, lineNo)
		}

		switch recType {
		case hexRecData:
			segs = append(segs, Segment{
				Address: upperAddr + addr,
				Bytes:   append([]byte(nil), payload...),
			})
		case hexRecEOF:
			sawEOF = true
		case hexRecExtendedSegment:
			if len(payload) != 2 {
				return nil, log.Errorf(pkg.Parse, "%s:%d: malformed extended segment address", filename, lineNo)
			}
			upperAddr = (uint32(payload[0])<<8 | uint32(payload[1])) << 4
		case hexRecExtendedLinear:
			if len(payload) != 2 {
				return nil, log.Errorf(pkg.Parse, "%s:%d: malformed extended linear address", filename, lineNo)
			}
			upperAddr = (uint32(payload[0])<<8 | uint32(payload[1])) << 16
		case hexRecStartSegment, hexRecStartLinear:
			// start address records carry no flash data
		default:
			return nil, log.Errorf(pkg.Parse, "%s:%d: unsupported record type %#02x", filename, lineNo, recType)
		}

		if sawEOF {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, log.Wrap(pkg.Io, err, filename)
	}
	if !sawEOF {
		return nil, log.Errorf(pkg.Parse, "%s: missing EOF record", filename)
	}

	return normalize("", filename, segs)
}
