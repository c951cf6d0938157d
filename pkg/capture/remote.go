package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

const (
	DefaultSignalPort = 8443
	DefaultProducer   = "reachymini"

	handshakeTimeout = 10 * time.Second
	listTimeout      = 5 * time.Second
	trackTimeout     = 15 * time.Second
)

var ErrProducerNotFound = errors.New("capture: producer not found")

// Remote is a network camera published over WebRTC behind a GStreamer
// webrtcsink signalling server. The stream is receive-only H264.
type Remote struct {
	Host       string
	SignalPort int
	Producer   string
	// NewDecoder builds the H264 decoder; defaults to NewH264Decoder.
	NewDecoder func() (Decoder, error)
}

// NewRemote returns a remote camera at host with default signalling
// settings.
func NewRemote(host string) *Remote {
	return &Remote{Host: host, SignalPort: DefaultSignalPort, Producer: DefaultProducer}
}

// SignallingURL is the websocket address of the signalling server.
func (r *Remote) SignallingURL() string {
	port := r.SignalPort
	if port == 0 {
		port = DefaultSignalPort
	}
	return fmt.Sprintf("ws://%s:%d", r.Host, port)
}

// GetUserMedia negotiates a session with the producer and waits for the
// first video track.
func (r *Remote) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if r.Host == "" {
		return nil, fmt.Errorf("%w: remote host not set", ErrNoDevice)
	}
	newDecoder := r.NewDecoder
	if newDecoder == nil {
		newDecoder = func() (Decoder, error) { return NewH264Decoder() }
	}
	producer := r.Producer
	if producer == "" {
		producer = DefaultProducer
	}

	s := &remoteStream{
		frameBuffer: newFrameBuffer(),
		producer:    producer,
		newDecoder:  newDecoder,
		trackReady:  make(chan struct{}, 1),
		logger:      log.With("component", "capture", "remote", r.Host),
	}
	s.onClose = s.teardown

	if err := s.connect(ctx, r.SignallingURL()); err != nil {
		s.end(err)
		return nil, err
	}
	return s, nil
}

// Signalling messages.
type (
	sigWelcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	sigProducer struct {
		ID   string            `json:"id"`
		Meta map[string]string `json:"meta"`
	}
	sigList struct {
		Type      string        `json:"type"`
		Producers []sigProducer `json:"producers"`
	}
	sigSDP struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	sigICE struct {
		Candidate     string  `json:"candidate"`
		SDPMid        *string `json:"sdpMid,omitempty"`
		SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
	}
	sigMessage struct {
		Type      string  `json:"type"`
		PeerID    string  `json:"peerId,omitempty"`
		SessionID string  `json:"sessionId,omitempty"`
		SDP       *sigSDP `json:"sdp,omitempty"`
		ICE       *sigICE `json:"ice,omitempty"`
	}
)

type remoteStream struct {
	*frameBuffer

	producer   string
	newDecoder func() (Decoder, error)
	logger     *slog.Logger

	ws      *websocket.Conn
	wsMu    sync.Mutex
	pc      *webrtc.PeerConnection
	decoder Decoder

	peerID     string
	producerID string
	sessionMu  sync.RWMutex
	sessionID  string

	trackReady chan struct{}
}

func (s *remoteStream) connect(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("%w: signalling connect %s: %v", ErrNoDevice, url, err)
	}
	s.ws = ws

	if err := s.waitForWelcome(); err != nil {
		return fmt.Errorf("capture: welcome: %w", err)
	}
	if err := s.findProducer(); err != nil {
		return err
	}
	if err := s.createPeerConnection(); err != nil {
		return fmt.Errorf("capture: peer connection: %w", err)
	}
	if err := s.send(sigMessage{Type: "startSession", PeerID: s.producerID}); err != nil {
		return fmt.Errorf("capture: start session: %w", err)
	}

	go s.handleSignalling()

	timer := time.NewTimer(trackTimeout)
	defer timer.Stop()
	select {
	case <-s.trackReady:
		s.logger.Info("remote video connected", "stream", s.ID())
		return nil
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("capture: timeout waiting for video track")
	}
}

func (s *remoteStream) readJSON(timeout time.Duration, v any) error {
	s.ws.SetReadDeadline(time.Now().Add(timeout))
	defer s.ws.SetReadDeadline(time.Time{})
	_, msg, err := s.ws.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(msg, v)
}

func (s *remoteStream) waitForWelcome() error {
	var w sigWelcome
	if err := s.readJSON(handshakeTimeout, &w); err != nil {
		return err
	}
	if w.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %q", w.Type)
	}
	s.peerID = w.PeerID
	return nil
}

func (s *remoteStream) findProducer() error {
	if err := s.send(sigMessage{Type: "list"}); err != nil {
		return fmt.Errorf("capture: list producers: %w", err)
	}
	var list sigList
	if err := s.readJSON(listTimeout, &list); err != nil {
		return fmt.Errorf("capture: list producers: %w", err)
	}
	for _, p := range list.Producers {
		if p.Meta["name"] == s.producer {
			s.producerID = p.ID
			return nil
		}
	}
	return fmt.Errorf("%w: %q among %d producers", ErrProducerNotFound, s.producer, len(list.Producers))
}

func (s *remoteStream) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	s.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.logger.Info("remote track", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go s.handleVideoTrack(track)
		}
	})
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c != nil {
			s.sendICE(c)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debug("peer connection state", "state", state.String())
		if state == webrtc.PeerConnectionStateFailed {
			go s.end(fmt.Errorf("capture: peer connection %s", state))
		}
	})
	return nil
}

func (s *remoteStream) handleSignalling() {
	for {
		_, raw, err := s.ws.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.end(fmt.Errorf("capture: signalling: %w", err))
			}
			return
		}

		var msg sigMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Warn("bad signalling message", "err", err)
			continue
		}

		switch msg.Type {
		case "sessionStarted":
			s.sessionMu.Lock()
			s.sessionID = msg.SessionID
			s.sessionMu.Unlock()
		case "peer":
			if err := s.handlePeer(msg); err != nil {
				s.logger.Warn("peer message failed", "err", err)
			}
		case "endSession":
			s.end(nil)
			return
		}
	}
}

func (s *remoteStream) handlePeer(msg sigMessage) error {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP.SDP}
		if err := s.pc.SetRemoteDescription(offer); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		return s.send(sigMessage{
			Type:      "peer",
			SessionID: s.session(),
			SDP:       &sigSDP{Type: answer.Type.String(), SDP: answer.SDP},
		})
	}
	if msg.ICE != nil {
		return s.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		})
	}
	return nil
}

func (s *remoteStream) session() string {
	s.sessionMu.RLock()
	defer s.sessionMu.RUnlock()
	return s.sessionID
}

func (s *remoteStream) sendICE(c *webrtc.ICECandidate) {
	id := s.session()
	if id == "" {
		return
	}
	init := c.ToJSON()
	if err := s.send(sigMessage{
		Type:      "peer",
		SessionID: id,
		ICE:       &sigICE{Candidate: init.Candidate, SDPMid: init.SDPMid, SDPMLineIndex: init.SDPMLineIndex},
	}); err != nil {
		s.logger.Debug("send ice failed", "err", err)
	}
}

func (s *remoteStream) send(msg sigMessage) error {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()
	return s.ws.WriteJSON(msg)
}

func (s *remoteStream) handleVideoTrack(track *webrtc.TrackRemote) {
	dec, err := s.newDecoder()
	if err != nil {
		s.end(err)
		return
	}
	s.wsMu.Lock()
	s.decoder = dec
	s.wsMu.Unlock()

	go s.pumpFrames(dec)

	select {
	case s.trackReady <- struct{}{}:
	default:
	}

	var units accessUnits
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			s.end(nil)
			return
		}
		au, err := units.Push(pkt)
		if err != nil {
			s.logger.Debug("dropping packet", "err", err)
			continue
		}
		if au == nil {
			continue
		}
		if err := dec.Write(au); err != nil {
			s.end(err)
			return
		}
	}
}

func (s *remoteStream) pumpFrames(dec Decoder) {
	for frame := range dec.Frames() {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
		if err != nil {
			continue
		}
		s.push(frame, faceapi.Dimensions{Width: cfg.Width, Height: cfg.Height})
	}
}

func (s *remoteStream) teardown() {
	if s.pc != nil {
		s.pc.Close()
	}
	s.wsMu.Lock()
	dec := s.decoder
	if s.ws != nil {
		s.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.ws.Close()
	}
	s.wsMu.Unlock()
	if dec != nil {
		dec.Close()
	}
}
