package firmware

import "github.com/ardnew/tyhs/pkg"

// LoadBinary wraps a raw binary image as a single segment at address 0.
func LoadBinary(filename string, data []byte) (*Firmware, error) {
	if len(data) == 0 {
		return nil, log.Errorf(pkg.Parse, "%s: empty file", filename)
	}
	return normalize("", filename, []Segment{{Address: 0, Bytes: append([]byte(nil), data...)}})
}
