package feedback

// buttonCode maps a single-bit button mask to its Feedback History code
// pair: press code is used when the button state does not carry a
// release/press distinction, releaseCode/pressCode are used for the
// buttons that have distinct codes for each edge (§4.8 code table).
type buttonCode struct {
	mask       uint32
	pressCode  byte
	releaseCode byte // 0 if the button uses the same code both ways
}

// buttonCodes is the normative (partial) code table from §4.8. Buttons
// without a listed releaseCode emit the same code on both press and
// release, disambiguated by the trailing state byte.
var buttonCodes = []buttonCode{
	{mask: 0x0001, pressCode: 0x88}, // Cross
	{mask: 0x0002, pressCode: 0x89}, // Circle
	{mask: 0x0004, pressCode: 0x8a}, // Square
	{mask: 0x0008, pressCode: 0x8b}, // Triangle
	{mask: 0x0010, pressCode: 0x82}, // DPad Left
	{mask: 0x0020, pressCode: 0x80}, // DPad Up
	{mask: 0x0040, pressCode: 0x83}, // DPad Right
	{mask: 0x0080, pressCode: 0x81}, // DPad Down
	{mask: 0x0100, pressCode: 0x84}, // L1
	{mask: 0x0200, pressCode: 0x85}, // R1
	{mask: 0x1000, pressCode: 0xac, releaseCode: 0x8c}, // Options
	{mask: 0x2000, pressCode: 0xad, releaseCode: 0x8d}, // Share
	{mask: 0x4000, pressCode: 0xaf, releaseCode: 0x8f}, // L3
	{mask: 0x8000, pressCode: 0xb0, releaseCode: 0x90}, // R3
	{mask: 0x10000, pressCode: 0xae, releaseCode: 0x8e}, // PS
	{mask: 0x100000, pressCode: 0xb1, releaseCode: 0x91}, // Touchpad
}

const (
	l2Code = 0x86
	r2Code = 0x87
)

// historyRecordMarker prefixes every Feedback History record (§4.8).
const historyRecordMarker = 0x80

// DiffEvents compares two ControllerState values and returns the
// Feedback History records (already including the leading 0x80 marker
// byte) for every button press/release and trigger level change between
// them. Returns nil if nothing changed.
func DiffEvents(prev, cur ControllerState) [][]byte {
	var records [][]byte

	changed := prev.Buttons ^ cur.Buttons
	for _, bc := range buttonCodes {
		if changed&bc.mask == 0 {
			continue
		}
		pressed := cur.Buttons&bc.mask != 0
		if bc.releaseCode != 0 {
			code := bc.releaseCode
			if pressed {
				code = bc.pressCode
			}
			records = append(records, []byte{historyRecordMarker, code})
		} else {
			state := byte(0x00)
			if pressed {
				state = 0xff
			}
			records = append(records, []byte{historyRecordMarker, bc.pressCode, state})
		}
	}

	if prev.L2 != cur.L2 {
		records = append(records, []byte{historyRecordMarker, l2Code, cur.L2})
	}
	if prev.R2 != cur.R2 {
		records = append(records, []byte{historyRecordMarker, r2Code, cur.R2})
	}

	return records
}
