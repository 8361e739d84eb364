package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	pcm := make([]byte, 32000) // one second at 16 kHz
	for i := range pcm {
		pcm[i] = byte(i)
	}

	wav, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wav) != 44+len(pcm) {
		t.Fatalf("total size: got %d, want %d", len(wav), 44+len(pcm))
	}

	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Error("missing RIFF/WAVE markers")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("chunk size: got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels: got %d, want mono", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate: got %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample: got %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size: got %d", got)
	}
	if !bytes.Equal(wav[44:], pcm) {
		t.Error("payload altered")
	}
}

func TestEncodeWAV_Invalid(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Error("expected error for empty audio")
	}
	if _, err := EncodeWAV([]byte{1, 2, 3}, 16000); err == nil {
		t.Error("expected error for odd-length pcm")
	}
	if _, err := EncodeWAV([]byte{1, 2}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}
