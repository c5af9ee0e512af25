package firmware

import (
	"bufio"
	"bytes"
	"encoding/hex"

	"github.com/ardnew/tyhs/pkg"
)

// srecAddressBytes returns the number of address bytes encoded by an SREC
// data or terminator record type, or 0 for any other type (header and
// count records included).
func srecAddressBytes(recType byte) int {
	switch recType {
	case '1', '9':
		return 2
	case '2', '8':
		return 3
	case '3', '7':
		return 4
	default:
		return 0
	}
}

// LoadSREC parses a Motorola SREC file into a Firmware. S0 header records
// are ignored; S1/S2/S3 carry data; S7/S8/S9 are terminators matching the
// address width of the data records that preceded them.
func LoadSREC(filename string, data []byte) (*Firmware, error) {
	var segs []Segment
	sawTerminator := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if len(line) < 4 || line[0] != 'S' {
			return nil, log.Errorf(pkg.Parse, "%s:%d: record does not start with 'S'", filename, lineNo)
		}
		recType := line[1]

		raw, err := hex.DecodeString(string(line[2:]))
		if err != nil {
			return nil, log.Errorf(pkg.Parse, "%s:%d: invalid hex digits", filename, lineNo)
		}
		if len(raw) < 2 {
			return nil, log.Errorf(pkg.Parse, "%s:%d: record too short", filename, lineNo)
		}

		count := int(raw[0])
		if len(raw) != 1+count {
			return nil, log.Errorf(pkg.Parse, "%s:%d: byte count mismatch", filename, lineNo)
		}
		body := raw[1 : 1+count]
		checksum := body[len(body)-1]
		body = body[:len(body)-1]

		var sum byte
		sum += raw[0]
		for _, b := range body {
			sum += b
		}
		if byte(^sum) != checksum {
			return nil, log.Errorf(pkg.Parse, "%s:%d: checksum mismatch", filename, lineNo)
		}

		switch recType {
		case '0':
			// header record, no flash data
		case '1', '2', '3':
			n := srecAddressBytes(recType)
			if len(body) < n {
				return nil, log.Errorf(pkg.Parse, "%s:%d: short address field", filename, lineNo)
			}
			var addr uint32
			for _, b := range body[:n] {
				addr = addr<<8 | uint32(b)
			}
			segs = append(segs, Segment{
				Address: addr,
				Bytes:   append([]byte(nil), body[n:]...),
			})
		case '5', '6':
			// record count, not flash data
		case '7', '8', '9':
			sawTerminator = true
		default:
			return nil, log.Errorf(pkg.Parse, "%s:%d: unsupported record type S%c", filename, lineNo, recType)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, log.Wrap(pkg.Io, err, filename)
	}
	if !sawTerminator {
		return nil, log.Errorf(pkg.Parse, "%s: missing terminator record", filename)
	}

	return normalize("", filename, segs)
}
