// Command audioclient streams a WAV file to the gateway and prints the
// transcript messages it gets back. Useful for manual end-to-end checks.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/damukelp/smart-transcriptor/internal/protocol"
)

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// 100ms of audio per frame at 16kHz 16-bit mono
const frameSize = 3200
const frameIntervalMs = 100

func main() {
	audioFile := flag.String("audio", "testdata/sample-16khz.wav", "Path to WAV file (16kHz 16-bit mono)")
	gatewayURL := flag.String("gateway", "ws://localhost:8000/audio", "Gateway websocket URL")
	streamID := flag.String("stream", "client-"+uuid.NewString()[:8], "Stream ID")
	language := flag.String("language", "", "Language hint")
	diarizeFlag := flag.Bool("diarize", true, "Request speaker diarization")
	flag.Parse()

	f, err := os.Open(*audioFile)
	if err != nil {
		log.Fatalf("Failed to open audio file: %v", err)
	}
	defer f.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		log.Fatalf("Failed to read WAV header: %v", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		log.Fatal("Not a valid WAV file")
	}

	numChannels := binary.LittleEndian.Uint16(header[22:24])
	sampleRate := binary.LittleEndian.Uint32(header[24:28])
	log.Printf("WAV file: channels=%d sampleRate=%d", numChannels, sampleRate)

	conn, _, err := websocket.DefaultDialer.Dial(*gatewayURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to gateway: %v", err)
	}
	defer conn.Close()

	start := protocol.StartMessage{
		Type:       protocol.TypeStart,
		StreamID:   *streamID,
		SampleRate: int(sampleRate),
		Encoding:   "pcm_s16le",
		Channels:   int(numChannels),
		Language:   *language,
		Diarize:    *diarizeFlag,
	}
	if err := conn.WriteJSON(start); err != nil {
		log.Fatalf("Failed to send start: %v", err)
	}
	log.Printf("Streaming: streamId=%s", *streamID)

	// Print server messages as they arrive; exit after the terminal one.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := protocol.PeekType(data)
			if err != nil {
				continue
			}
			var pretty map[string]any
			_ = json.Unmarshal(data, &pretty)
			log.Printf("<- %s: %v", env.Type, pretty)
			if env.Type == protocol.TypeTranscriptComplete || env.Type == protocol.TypeError {
				return
			}
		}
	}()

	frame := make([]byte, frameSize)
	var totalBytes int64
	for {
		n, err := f.Read(frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("Failed to read audio: %v", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame[:n]); err != nil {
			log.Fatalf("Failed to send frame: %v", err)
		}
		totalBytes += int64(n)
		time.Sleep(frameIntervalMs * time.Millisecond)
	}
	log.Printf("Finished streaming %d bytes, sending end", totalBytes)

	end := protocol.EndMessage{Type: protocol.TypeEnd, StreamID: *streamID}
	if err := conn.WriteJSON(end); err != nil {
		log.Fatalf("Failed to send end: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Minute):
		log.Fatal("Timed out waiting for transcript")
	}
}
