// Package reader18 encodes and decodes the UHFReader18 style frames spoken by
// ST-8508 class readers over TCP or a serial line.
//
// Command frame:  Len Adr Cmd Data... CRC_L CRC_H
// Response frame: Len Adr Cmd Status Data... CRC_L CRC_H
// Len counts every byte after itself. CRC is CRC-16/MCRF4XX over Len..Data.
package reader18

import (
	"fmt"
)

const (
	CmdInventory       byte = 0x01
	CmdInventorySingle byte = 0x0F
	CmdGetReaderInfo   byte = 0x21
	CmdSetScanTime     byte = 0x25
	CmdSetOutputPower  byte = 0x2F

	DefaultReaderAddress   byte = 0x00
	BroadcastReaderAddress byte = 0xFF

	// MaxOutputPower is the highest value SetOutputPower accepts, in dBm.
	MaxOutputPower byte = 30
)

// Response status codes.
const (
	StatusSuccess          byte = 0x00
	StatusInventoryDone    byte = 0x01
	StatusInventoryTimeout byte = 0x02
	StatusMoreData         byte = 0x03
	StatusBufferFull       byte = 0x04
	StatusAntennaError     byte = 0xF8
	StatusNoTagOrTimeout   byte = 0xFB
	StatusCmdError         byte = 0xFE
	StatusCRCError         byte = 0xFF
)

// StatusText describes a response status for operators.
func StatusText(status byte) string {
	switch status {
	case StatusSuccess:
		return "success"
	case StatusInventoryDone:
		return "inventory finished"
	case StatusInventoryTimeout:
		return "inventory timed out"
	case StatusMoreData:
		return "more data follows"
	case StatusBufferFull:
		return "reader buffer full"
	case StatusAntennaError:
		return "antenna error"
	case StatusNoTagOrTimeout:
		return "no tag in field"
	case StatusCmdError:
		return "command rejected"
	case StatusCRCError:
		return "checksum mismatch"
	default:
		return fmt.Sprintf("status 0x%02X", status)
	}
}

// Frame is one decoded response.
type Frame struct {
	Address byte
	Command byte
	Status  byte
	Data    []byte
}

// BuildCommand encodes a command frame.
func BuildCommand(address, command byte, payload []byte) []byte {
	packet := make([]byte, 0, len(payload)+5)
	packet = append(packet, byte(len(payload)+4), address, command)
	packet = append(packet, payload...)

	crc := crc16MCRF4XX(packet)
	return append(packet, byte(crc&0xFF), byte(crc>>8))
}

// BuildResponse encodes a response frame. Readers send these; tests and
// simulators build them.
func BuildResponse(address, command, status byte, data []byte) []byte {
	payload := make([]byte, 0, len(data)+1)
	payload = append(payload, status)
	payload = append(payload, data...)
	return BuildCommand(address, command, payload)
}

// VerifyPacket reports whether packet is exactly one frame with a valid CRC.
func VerifyPacket(packet []byte) bool {
	if len(packet) < 5 || int(packet[0])+1 != len(packet) {
		return false
	}
	crc := crc16MCRF4XX(packet[:len(packet)-2])
	return byte(crc&0xFF) == packet[len(packet)-2] && byte(crc>>8) == packet[len(packet)-1]
}

// ParseFrames decodes every complete response in stream and returns the
// incomplete tail. Bytes that cannot start a valid frame are skipped.
func ParseFrames(stream []byte) (frames []Frame, remaining []byte) {
	buf := stream
	for len(buf) >= 6 {
		total := int(buf[0]) + 1
		if total < 6 {
			buf = buf[1:]
			continue
		}
		if total > len(buf) {
			break
		}
		raw := buf[:total]
		if !VerifyPacket(raw) {
			buf = buf[1:]
			continue
		}

		data := make([]byte, total-6)
		copy(data, raw[4:total-2])
		frames = append(frames, Frame{
			Address: raw[1],
			Command: raw[2],
			Status:  raw[3],
			Data:    data,
		})
		buf = buf[total:]
	}

	if len(buf) > 0 {
		remaining = make([]byte, len(buf))
		copy(remaining, buf)
	}
	return frames, remaining
}

// Decoder accumulates stream chunks that may split frames.
type Decoder struct {
	pending []byte
}

// Feed appends chunk and returns the frames completed by it.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.pending = append(d.pending, chunk...)
	frames, rest := ParseFrames(d.pending)
	d.pending = rest
	return frames
}

func (d *Decoder) Reset() { d.pending = nil }

func InventoryCommand(address byte) []byte {
	return BuildCommand(address, CmdInventory, nil)
}

func GetReaderInfoCommand(address byte) []byte {
	return BuildCommand(address, CmdGetReaderInfo, nil)
}

// SetScanTimeCommand sets the inventory window in 100 ms steps.
func SetScanTimeCommand(address, value byte) []byte {
	return BuildCommand(address, CmdSetScanTime, []byte{value})
}

// SetOutputPowerCommand sets RF output in dBm, clamped to MaxOutputPower.
func SetOutputPowerCommand(address, dbm byte) []byte {
	if dbm > MaxOutputPower {
		dbm = MaxOutputPower
	}
	return BuildCommand(address, CmdSetOutputPower, []byte{dbm})
}

// InventoryTag is one tag from an inventory response. RSSI is only meaningful
// when HasRSSI is set.
type InventoryTag struct {
	Antenna byte
	EPC     []byte
	RSSI    int
	HasRSSI bool
}

func inventoryPayload(frame Frame) ([]byte, error) {
	if frame.Command != CmdInventory {
		return nil, fmt.Errorf("not an inventory frame: 0x%02X", frame.Command)
	}
	switch frame.Status {
	case StatusInventoryDone, StatusInventoryTimeout, StatusMoreData, StatusBufferFull:
	case StatusNoTagOrTimeout:
		return nil, nil
	default:
		return nil, fmt.Errorf("inventory: %s", StatusText(frame.Status))
	}
	return frame.Data, nil
}

// ParseInventory decodes an inventory (0x01) response.
// Data layout: Num(1) then Num times EPCLen(1) EPC(EPCLen).
func ParseInventory(frame Frame) ([][]byte, error) {
	data, err := inventoryPayload(frame)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	tags, err := parseTagList(data, 0, false)
	epcs := make([][]byte, 0, len(tags))
	for _, tag := range tags {
		epcs = append(epcs, tag.EPC)
	}
	return epcs, err
}

// ParseInventoryRSSI decodes the G2 inventory response of readers that report
// signal strength.
// Data layout: Ant(1) Num(1) then Num times EPCLen(1) EPC(EPCLen) RSSI(1).
// The RSSI byte is a signed dBm value.
func ParseInventoryRSSI(frame Frame) ([]InventoryTag, error) {
	data, err := inventoryPayload(frame)
	if err != nil || len(data) == 0 {
		return nil, err
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("inventory: payload too short")
	}
	return parseTagList(data[1:], data[0], true)
}

func parseTagList(data []byte, antenna byte, withRSSI bool) ([]InventoryTag, error) {
	count := int(data[0])
	tags := make([]InventoryTag, 0, count)
	pos := 1
	for i := 0; i < count; i++ {
		if pos >= len(data) {
			return tags, fmt.Errorf("inventory: truncated after %d of %d tags", i, count)
		}
		n := int(data[pos])
		pos++
		need := n
		if withRSSI {
			need++
		}
		if n == 0 || pos+need > len(data) {
			return tags, fmt.Errorf("inventory: bad epc length %d", n)
		}
		tag := InventoryTag{Antenna: antenna, EPC: append([]byte(nil), data[pos:pos+n]...)}
		pos += n
		if withRSSI {
			tag.RSSI = int(int8(data[pos]))
			tag.HasRSSI = true
			pos++
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// SingleInventoryResult is a decoded 0x0F response.
type SingleInventoryResult struct {
	Antenna  byte
	TagCount int
	EPC      []byte
}

// ParseSingleInventory decodes Ant(1) Count(1) EPCLen(1) EPC(n).
func ParseSingleInventory(frame Frame) (SingleInventoryResult, error) {
	if frame.Command != CmdInventorySingle {
		return SingleInventoryResult{}, fmt.Errorf("not a single-inventory frame: 0x%02X", frame.Command)
	}
	if frame.Status != StatusInventoryDone {
		return SingleInventoryResult{}, fmt.Errorf("single inventory: %s", StatusText(frame.Status))
	}
	if len(frame.Data) < 3 {
		return SingleInventoryResult{}, fmt.Errorf("single inventory: payload too short")
	}
	n := int(frame.Data[2])
	if len(frame.Data) < 3+n {
		return SingleInventoryResult{}, fmt.Errorf("single inventory: bad epc length %d", n)
	}
	epc := make([]byte, n)
	copy(epc, frame.Data[3:3+n])
	return SingleInventoryResult{Antenna: frame.Data[0], TagCount: int(frame.Data[1]), EPC: epc}, nil
}

// ReaderInfo is the decoded 0x21 response.
type ReaderInfo struct {
	Version  string
	Type     byte
	Protocol byte
	MaxFreq  byte
	MinFreq  byte
	Power    byte
	ScanTime byte
}

// ParseReaderInfo decodes Version(2) Type(1) Tr_Type(1) dmaxfre(1) dminfre(1) Power(1) Scntm(1).
func ParseReaderInfo(frame Frame) (ReaderInfo, error) {
	if frame.Command != CmdGetReaderInfo {
		return ReaderInfo{}, fmt.Errorf("not a reader-info frame: 0x%02X", frame.Command)
	}
	if frame.Status != StatusSuccess {
		return ReaderInfo{}, fmt.Errorf("reader info: %s", StatusText(frame.Status))
	}
	if len(frame.Data) < 8 {
		return ReaderInfo{}, fmt.Errorf("reader info: payload too short")
	}
	d := frame.Data
	return ReaderInfo{
		Version:  fmt.Sprintf("%d.%d", d[0], d[1]),
		Type:     d[2],
		Protocol: d[3],
		MaxFreq:  d[4],
		MinFreq:  d[5],
		Power:    d[6],
		ScanTime: d[7],
	}, nil
}

// crc-16-mcrf4xx (poly 0x8408, init 0xFFFF, reflected).
func crc16MCRF4XX(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ 0x8408
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
