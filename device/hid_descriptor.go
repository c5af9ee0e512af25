package device

import "github.com/ardnew/tyhs/pkg"

// HID report descriptor item prefixes this walker branches on. Only the
// items needed to extract usage_page/usage/numbered_reports are named;
// every other item is skipped by its computed size.
const (
	hidItemCollectionBegin = 0xA0
	hidItemCollectionEnd   = 0xC0
	hidItemReportID        = 0x84
	hidItemUsagePage       = 0x04
	hidItemUsage           = 0x08
	hidItemLongItem        = 0xFE
)

var hidLog = pkg.NewContext(pkg.ComponentDevice)

// ParseHIDDescriptor walks a raw HID report descriptor and writes
// usage_page, usage, and numbered_reports onto d. Malformed input (an item
// whose declared size runs past the end of desc) stops the walk at a
// Warning-logged point and retains whatever fields were already set; it
// never reads past len(desc), including for truncated long items.
func ParseHIDDescriptor(d *Device, desc []byte) {
	var depth int
	i := 0
	for i < len(desc) {
		prefix := desc[i]

		if prefix == hidItemLongItem {
			if i+1 >= len(desc) {
				dispatchMalformed(i)
				return
			}
			i += 3 + int(desc[i+1])
			continue
		}

		size := itemSize(prefix)
		if i+1+size > len(desc) {
			dispatchMalformed(i)
			return
		}

		value := readLE(desc[i+1 : i+1+size])
		tag := prefix &^ 0x03 // mask off the size bits, keep type+tag

		switch tag {
		case hidItemCollectionBegin:
			depth++
		case hidItemCollectionEnd:
			depth--
		case hidItemReportID:
			d.NumberedReports = true
		case hidItemUsagePage:
			if depth == 0 {
				d.UsagePage = uint16(value)
			}
		case hidItemUsage:
			if depth == 0 {
				d.Usage = uint16(value)
			}
		}

		i += 1 + size
	}
}

// itemSize decodes the 2-bit size field in an item's prefix byte. A value
// of 3 means 4 bytes, per the HID spec's one irregular case.
func itemSize(prefix byte) int {
	switch prefix & 0x03 {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return 2
	default:
		return 4
	}
}

// readLE decodes a little-endian unsigned integer of 0, 1, 2, or 4 bytes.
func readLE(b []byte) uint32 {
	var v uint32
	for i, x := range b {
		v |= uint32(x) << (8 * i)
	}
	return v
}

func dispatchMalformed(offset int) {
	pkg.LogWarn(pkg.ComponentDevice, "HID report descriptor item overruns buffer",
		"offset", offset, "kind", pkg.Parse.String())
}
