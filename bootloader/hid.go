package bootloader

import (
	"context"
	"encoding/binary"

	"github.com/ardnew/tyhs/board"
	"github.com/ardnew/tyhs/firmware"
	"github.com/ardnew/tyhs/pkg"
	"github.com/ardnew/tyhs/port"
)

// addressWidth returns the number of little-endian bytes used to encode a
// block's address, wide enough to cover m's code size.
func addressWidth(m board.Model) int {
	if m.CodeSize > 0xFFFFFF {
		return 4
	}
	return 3
}

// buildBlockReport assembles one Halfkay-style report: an address field
// sized per addressWidth, followed by up to m.BlockSize bytes of payload
// zero-padded to a full block.
func buildBlockReport(m board.Model, address uint32, payload []byte) []byte {
	width := addressWidth(m)
	report := make([]byte, width+m.BlockSize)

	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, address)
	copy(report, buf[:width])
	copy(report[width:], payload)
	return report
}

// writeTimeoutMs bounds a single block write; a stalled bootloader write
// is reported as Io rather than hanging the task indefinitely.
const writeTimeoutMs = 5000

// streamBlocks writes fw's segments to p in m.BlockSize chunks, reporting
// progress after each block and retrying transient I/O failures up to
// d.retries times per block, per spec.md §4.13 step 5 and §4.14.
func (d *Driver) streamBlocks(ctx context.Context, p *port.Port, fw *firmware.Firmware, m board.Model) error {
	if m.BlockSize <= 0 {
		return log.Errorf(pkg.Parse, "model %s has no block size configured", m.Name)
	}

	sent := 0
	for _, seg := range fw.Segments {
		for off := 0; off < len(seg.Bytes); off += m.BlockSize {
			if err := ctx.Err(); err != nil {
				return log.Wrap(pkg.Io, err, "upload cancelled")
			}

			end := off + m.BlockSize
			if end > len(seg.Bytes) {
				end = len(seg.Bytes)
			}
			chunk := seg.Bytes[off:end]
			report := buildBlockReport(m, seg.Address+uint32(off), chunk)

			if err := d.writeBlockWithRetry(p, report); err != nil {
				return err
			}

			sent += len(chunk)
			d.report("upload", sent, fw.TotalSize)
		}
	}
	return nil
}

func (d *Driver) writeBlockWithRetry(p *port.Port, report []byte) error {
	var lastErr error
	retries := d.retries
	if retries < 0 {
		retries = 0
	}
	for attempt := 0; attempt <= retries; attempt++ {
		n, err := p.Write(report, writeTimeoutMs)
		if err == nil && n == len(report) {
			return nil
		}
		lastErr = err
		if err == nil {
			lastErr = log.Errorf(pkg.Io, "short write: %d of %d bytes", n, len(report))
		}
	}
	return log.Wrap(pkg.Io, lastErr, "block write failed after retries")
}
