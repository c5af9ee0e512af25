package board

// Capability is one bit of what an interface, and transitively a Board,
// can do.
type Capability uint8

// Capability bits, unioned across a Board's interfaces.
const (
	CapUpload Capability = 1 << iota
	CapReset
	CapReboot
	CapRun
	CapSerial
	CapUnique
)

// Has reports whether all bits of want are set in c.
func (c Capability) Has(want Capability) bool { return c&want == want }

// Personality distinguishes a model's two USB identities: the normal
// running firmware, and the bootloader it reboots into for reprogramming.
type Personality uint8

// Personalities.
const (
	PersonalityRun Personality = iota
	PersonalityBootloader
)

// Model is a static record describing one supported board family: its MCU,
// memory layout, bootloader HID signature, and the VID/PID pairs that
// identify each of its two personalities.
type Model struct {
	Name       string
	MCUFamily  string
	CodeSize   int
	BlockSize  int
	UsagePage  uint16 // bootloader HID collection usage_page
	Usage      uint16 // bootloader HID collection usage
	Run        IDPair
	Bootloader IDPair

	// Signature and SignatureOffset locate the magic bytes a firmware
	// image must carry at a known offset to be considered compatible
	// with this model, per spec.md §4.13 step 3. Empty Signature means
	// no family-specific magic is defined; a Driver falls back to
	// accepting the sole candidate firmware in that case.
	Signature       []byte
	SignatureOffset uint32
}

// IDPair is one personality's (vid, pid).
type IDPair struct {
	VID uint16
	PID uint16
}

// registry is the static table of supported models. It is small and
// hand-maintained, the same way a hardware-support table in any device
// toolkit is: growing it means adding a new Teensy family, not writing
// code.
var registry = []Model{
	{
		Name: "Teensy 4.1", MCUFamily: "imxrt1062",
		CodeSize: 8192 * 1024, BlockSize: 1024,
		UsagePage: 0xFFAB, Usage: 0x0200,
		Run:        IDPair{VID: 0x16C0, PID: 0x0483},
		Bootloader: IDPair{VID: 0x16C0, PID: 0x0478},
	},
	{
		Name: "Teensy 4.0", MCUFamily: "imxrt1062",
		CodeSize: 2048 * 1024, BlockSize: 1024,
		UsagePage: 0xFFAB, Usage: 0x0200,
		Run:        IDPair{VID: 0x16C0, PID: 0x0483},
		Bootloader: IDPair{VID: 0x16C0, PID: 0x0478},
	},
	{
		Name: "Teensy 3.6", MCUFamily: "mk66fx1m0",
		CodeSize: 1024 * 1024, BlockSize: 1024,
		UsagePage: 0xFFAB, Usage: 0x0200,
		Run:        IDPair{VID: 0x16C0, PID: 0x0483},
		Bootloader: IDPair{VID: 0x16C0, PID: 0x0478},
	},
	{
		Name: "Teensy LC", MCUFamily: "mkl26z64",
		CodeSize: 62 * 1024, BlockSize: 512,
		UsagePage: 0xFFAB, Usage: 0x0200,
		Run:        IDPair{VID: 0x16C0, PID: 0x0483},
		Bootloader: IDPair{VID: 0x16C0, PID: 0x0478},
	},
}

// ModelByPersonality looks up the model and personality matching (vid,
// pid), returning ok=false when no registered model claims this pair.
func ModelByPersonality(vid, pid uint16) (Model, Personality, bool) {
	for _, m := range registry {
		if m.Run.VID == vid && m.Run.PID == pid {
			return m, PersonalityRun, true
		}
		if m.Bootloader.VID == vid && m.Bootloader.PID == pid {
			return m, PersonalityBootloader, true
		}
	}
	return Model{}, 0, false
}

// Unknown is the zero Model, used for a Board whose interfaces haven't
// matched any registered model yet.
var Unknown = Model{Name: "unknown"}
