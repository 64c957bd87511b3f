package reader18

import (
	"bytes"
	"testing"
)

func TestBuildCommandKnownVector(t *testing.T) {
	// GetReaderInfo to address 0: 04 00 21 D9 6A
	got := GetReaderInfoCommand(DefaultReaderAddress)
	want := []byte{0x04, 0x00, 0x21, 0xD9, 0x6A}
	if !bytes.Equal(got, want) {
		t.Fatalf("unexpected packet: % X", got)
	}
	if !VerifyPacket(got) {
		t.Fatalf("packet must verify")
	}
}

func TestVerifyPacketRejectsCorruption(t *testing.T) {
	pkt := SetOutputPowerCommand(0, 27)
	pkt[3] ^= 0x01
	if VerifyPacket(pkt) {
		t.Fatalf("corrupted packet verified")
	}
	if VerifyPacket([]byte{0x01}) {
		t.Fatalf("short packet verified")
	}
}

func TestSetOutputPowerClamps(t *testing.T) {
	frames, _ := ParseFrames(SetOutputPowerCommand(0, 99))
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	// command frames have no status byte; the payload shows up in Status
	if frames[0].Status != MaxOutputPower {
		t.Fatalf("power not clamped: %d", frames[0].Status)
	}
}

func TestParseFramesSkipsGarbageAndKeepsTail(t *testing.T) {
	a := BuildResponse(0, CmdSetOutputPower, StatusSuccess, nil)
	b := BuildResponse(0, CmdGetReaderInfo, StatusSuccess, []byte{2, 1, 0x0C, 0, 0x3E, 0, 30, 10})

	stream := append([]byte{0x01, 0x03}, a...)
	stream = append(stream, b[:4]...)

	frames, rest := ParseFrames(stream)
	if len(frames) != 1 || frames[0].Command != CmdSetOutputPower {
		t.Fatalf("unexpected frames: %+v", frames)
	}
	if !bytes.Equal(rest, b[:4]) {
		t.Fatalf("unexpected tail: % X", rest)
	}
}

func TestDecoderJoinsSplitFrames(t *testing.T) {
	resp := BuildResponse(0, CmdInventory, StatusInventoryDone, []byte{
		2,
		4, 0xE2, 0x00, 0x00, 0x01,
		2, 0xAB, 0xCD,
	})

	var d Decoder
	if got := d.Feed(resp[:5]); len(got) != 0 {
		t.Fatalf("frame decoded too early")
	}
	frames := d.Feed(resp[5:])
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}

	epcs, err := ParseInventory(frames[0])
	if err != nil {
		t.Fatalf("parse inventory: %v", err)
	}
	if len(epcs) != 2 || !bytes.Equal(epcs[0], []byte{0xE2, 0, 0, 0x01}) || !bytes.Equal(epcs[1], []byte{0xAB, 0xCD}) {
		t.Fatalf("unexpected epcs: % X", epcs)
	}
}

func TestParseInventoryStatuses(t *testing.T) {
	empty := Frame{Command: CmdInventory, Status: StatusNoTagOrTimeout}
	if epcs, err := ParseInventory(empty); err != nil || len(epcs) != 0 {
		t.Fatalf("no-tag status must be empty: %v %v", epcs, err)
	}

	bad := Frame{Command: CmdInventory, Status: StatusCmdError}
	if _, err := ParseInventory(bad); err == nil {
		t.Fatalf("expected error for rejected command")
	}

	truncated := Frame{Command: CmdInventory, Status: StatusInventoryDone, Data: []byte{2, 2, 0x01, 0x02}}
	epcs, err := ParseInventory(truncated)
	if err == nil || len(epcs) != 1 {
		t.Fatalf("expected partial result with error, got %v %v", epcs, err)
	}
}

func TestParseReaderInfo(t *testing.T) {
	resp := BuildResponse(0, CmdGetReaderInfo, StatusSuccess, []byte{2, 5, 0x0C, 0, 0x3E, 0, 26, 10})
	frames, _ := ParseFrames(resp)
	info, err := ParseReaderInfo(frames[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Version != "2.5" || info.Power != 26 || info.ScanTime != 10 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestParseSingleInventory(t *testing.T) {
	f := Frame{Command: CmdInventorySingle, Status: StatusInventoryDone, Data: []byte{1, 1, 2, 0xBE, 0xEF}}
	res, err := ParseSingleInventory(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if res.Antenna != 1 || res.TagCount != 1 || !bytes.Equal(res.EPC, []byte{0xBE, 0xEF}) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestParseInventoryRSSI(t *testing.T) {
	resp := BuildResponse(0, CmdInventory, StatusInventoryDone, []byte{
		0x02, 2,
		2, 0xE2, 0x01, 0xC5,
		3, 0xAA, 0xBB, 0xCC, 0xD8,
	})
	frames, _ := ParseFrames(resp)
	if len(frames) != 1 {
		t.Fatalf("expected one frame, got %d", len(frames))
	}
	tags, err := ParseInventoryRSSI(frames[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("expected two tags, got %d", len(tags))
	}
	if !bytes.Equal(tags[0].EPC, []byte{0xE2, 0x01}) || tags[0].RSSI != -59 || tags[0].Antenna != 2 || !tags[0].HasRSSI {
		t.Fatalf("unexpected first tag: %+v", tags[0])
	}
	if tags[1].RSSI != -40 {
		t.Fatalf("unexpected second rssi %d", tags[1].RSSI)
	}

	short := Frame{Command: CmdInventory, Status: StatusInventoryDone, Data: []byte{1, 1, 2, 0xE2, 0x01}}
	if got, err := ParseInventoryRSSI(short); err == nil || len(got) != 0 {
		t.Fatalf("expected missing rssi byte to fail, got %v %v", got, err)
	}
}
