package radar

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Replay steps through recorded batches, one per Latest call. After the last
// batch it returns nil.
type Replay struct {
	mu      sync.Mutex
	batches [][]Return
	next    int
}

// NewReplay wraps pre-decoded batches.
func NewReplay(batches [][]Return) *Replay {
	return &Replay{batches: batches}
}

// Latest returns the next recorded batch.
func (r *Replay) Latest() []Return {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.batches) {
		return nil
	}
	b := r.batches[r.next]
	r.next++
	return b
}

// Remaining reports how many batches have not been handed out.
func (r *Replay) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches) - r.next
}

// LoadPcap reads a classic pcap capture of the UDP radar feed and decodes
// every payload sent to udpPort. Payloads may hold several newline-separated
// batches. Undecodable payloads are logged and skipped.
func LoadPcap(path string, udpPort int) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", path, err)
	}
	defer f.Close()
	return ReadPcap(f, udpPort)
}

// ReadPcap is LoadPcap over an open capture.
func ReadPcap(r io.Reader, udpPort int) (*Replay, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read pcap header: %w", err)
	}

	var (
		batches [][]Return
		packets int
		skipped int
	)
	for {
		data, _, err := reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read packet %d: %w", packets+1, err)
		}
		packets++

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.NoCopy)
		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || int(udp.DstPort) != udpPort || len(udp.Payload) == 0 {
			continue
		}

		scan := bufio.NewScanner(bytes.NewReader(udp.Payload))
		for scan.Scan() {
			line := scan.Text()
			if len(bytes.TrimSpace([]byte(line))) == 0 {
				continue
			}
			returns, err := ParseBatch(line)
			if err != nil {
				skipped++
				continue
			}
			batches = append(batches, returns)
		}
	}

	log.Printf("[Radar] pcap replay: %d packets, %d batches, %d skipped (udp port %d)",
		packets, len(batches), skipped, udpPort)
	return NewReplay(batches), nil
}
