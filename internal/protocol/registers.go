package protocol

// Register write framing bytes.
const (
	cmdMarker    = 0xAF
	cmdWriteReg  = 0x20
	regWriteSize = 6 // marker + opcode + addr + value
)

// Timing controller registers, programmed by the mode sequence.
const (
	RegHActive    = 0x1000
	RegHBlank     = 0x1002
	RegHSyncStart = 0x1004
	RegHSyncWidth = 0x1006
	RegVActive    = 0x1008
	RegVBlank     = 0x100A
	RegVSyncStart = 0x100C
	RegVSyncWidth = 0x100E
	RegPixelClock = 0x1010 // 32-bit, kHz
	RegEnable     = 0x1014
)

// Damage rectangle registers.
const (
	RegDamageX = 0x2000
	RegDamageY = 0x2002
	RegDamageW = 0x2004
	RegDamageH = 0x2006
)

// Control registers.
const (
	RegBlank = 0x1F00 // 1 = blank, 0 = unblank
	RegSync  = 0xFF00 // write SyncValue to flush the pending update
)

// SyncValue is the value written to RegSync to flush an update.
const SyncValue = 0xFFFF

// MaxTransferSize caps one bulk transfer unit.
const MaxTransferSize = 16384

// Vendor control requests issued on the default control pipe.
const (
	ReqChannel       = 0x12 // channel selection/initialization
	ChannelInit      = 0x0000
	RequestTypeOut   = 0x40 // host-to-device, vendor, device recipient
	DisplayInterface = 0
)

// validRegister reports whether addr falls inside a known register window.
// Addresses outside these windows have unknown effects and are rejected
// rather than sent to the device.
func validRegister(addr uint16) bool {
	switch {
	case addr >= RegHActive && addr <= RegEnable:
		return true
	case addr >= RegDamageX && addr <= RegDamageH:
		return true
	case addr == RegBlank || addr == RegSync:
		return true
	}
	return false
}
