package network

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/fanbeam/internal/monitoring"
	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/sonar/l1datagrams"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// packetReader is implemented by pcapgo.Reader and pcapgo.NgReader.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// PcapSource replays a packet capture of the datagram stream. Frames are
// reassembled once at open with capture timestamps, so loss in the
// capture shows up as missing frames just as it would live.
type PcapSource struct {
	frames []*sonar.Frame
	stats  l1datagrams.ReassemblerStats
	fps    float64
	cursor int
}

// OpenPcap reads a .pcap or .pcapng file, keeping UDP datagrams sent to
// port (any port when 0).
func OpenPcap(path string, port int) (*PcapSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture %s: %w", path, err)
	}
	defer f.Close()
	return ReadPcap(f, port)
}

// ReadPcap reads a capture from r, detecting pcap or pcapng from the magic.
func ReadPcap(r io.Reader, port int) (*PcapSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, fmt.Errorf("%w: capture too short: %v", sonar.ErrDecode, err)
	}

	var pr packetReader
	if bytes.Equal(magic, pcapngMagic) {
		pr, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		pr, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: capture header: %v", sonar.ErrDecode, err)
	}
	return loadCapture(pr, port)
}

func loadCapture(pr packetReader, port int) (*PcapSource, error) {
	src := &PcapSource{}
	clock := timeutil.NewMockClock(time.Time{})
	reasm := l1datagrams.NewReassembler(l1datagrams.ReassemblerConfig{
		Clock:   clock,
		OnFrame: func(d l1datagrams.Delivery) { src.frames = append(src.frames, d.Frame) },
	})

	packets, udpPackets := 0, 0
	for {
		data, ci, err := pr.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			reasm.Close()
			return nil, fmt.Errorf("%w: capture packet %d: %v", sonar.ErrDecode, packets, err)
		}
		packets++

		pkt := gopacket.NewPacket(data, pr.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			continue
		}
		udpPackets++
		clock.Set(ci.Timestamp)
		if err := reasm.HandleDatagram(udp.Payload); err != nil {
			monitoring.Debugf("[Pcap] packet %d: %v", packets, err)
		}
	}
	// Close drains the callback worker, so frames is complete afterwards.
	reasm.Close()

	src.stats = reasm.Stats()
	src.fps = estimateFPS(src.frames)
	monitoring.Logf("[Pcap] %d packets, %d datagrams, %d frames (%d incomplete)",
		packets, udpPackets, len(src.frames), src.stats.FramesIncomplete)
	return src, nil
}

// estimateFPS derives the frame rate from the first and last timestamps.
func estimateFPS(frames []*sonar.Frame) float64 {
	if len(frames) < 2 {
		return 0
	}
	span := frames[len(frames)-1].Timestamp() - frames[0].Timestamp()
	if span <= 0 {
		return 0
	}
	return float64(len(frames)-1) / span
}

// Stats reports what reassembly saw in the capture.
func (s *PcapSource) Stats() l1datagrams.ReassemblerStats { return s.stats }

func (s *PcapSource) FrameCount() int { return len(s.frames) }

func (s *PcapSource) FPS() float64 { return sonar.EffectiveFPS(s.fps) }

func (s *PcapSource) Seek(i int) error {
	if i < 0 || i > len(s.frames) {
		return fmt.Errorf("%w: seek %d of %d frames", sonar.ErrEndOfSource, i, len(s.frames))
	}
	s.cursor = i
	return nil
}

func (s *PcapSource) ReadNext() (*sonar.Frame, error) {
	if s.cursor >= len(s.frames) {
		return nil, sonar.ErrEndOfSource
	}
	f := s.frames[s.cursor]
	s.cursor++
	return f, nil
}

func (s *PcapSource) Close() error {
	s.frames = nil
	return nil
}

// CaptureWriter records datagrams as a pcap file with synthetic
// Ethernet/IPv4/UDP framing, for offline replay through OpenPcap.
type CaptureWriter struct {
	w       *pcapgo.Writer
	ip      *layers.IPv4
	eth     *layers.Ethernet
	port    uint16
	srcPort uint16
	buf     gopacket.SerializeBuffer
}

// NewCaptureWriter writes a pcap file header to w.
func NewCaptureWriter(w io.Writer, dstPort int) (*CaptureWriter, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	return &CaptureWriter{
		w: pw,
		eth: &layers.Ethernet{
			SrcMAC:       []byte{0x02, 0, 0, 0, 0, 1},
			DstMAC:       []byte{0x02, 0, 0, 0, 0, 2},
			EthernetType: layers.EthernetTypeIPv4,
		},
		ip: &layers.IPv4{
			Version:  4,
			TTL:      64,
			Protocol: layers.IPProtocolUDP,
			SrcIP:    []byte{127, 0, 0, 1},
			DstIP:    []byte{127, 0, 0, 1},
		},
		port:    uint16(dstPort),
		srcPort: 40000,
		buf:     gopacket.NewSerializeBuffer(),
	}, nil
}

// WriteDatagram appends one UDP payload captured at ts.
func (c *CaptureWriter) WriteDatagram(ts time.Time, payload []byte) error {
	udp := &layers.UDP{SrcPort: layers.UDPPort(c.srcPort), DstPort: layers.UDPPort(c.port)}
	if err := udp.SetNetworkLayerForChecksum(c.ip); err != nil {
		return err
	}
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(c.buf, opts, c.eth, c.ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("failed to serialize datagram: %w", err)
	}
	data := c.buf.Bytes()
	return c.w.WritePacket(gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}, data)
}
