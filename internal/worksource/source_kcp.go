package worksource

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	kcp "github.com/xtaci/kcp-go/v5"
	"github.com/xtaci/qpp"
	"github.com/xtaci/smux"
	"github.com/xtaci/tcpraw"

	"github.com/go-primegap/miner/internal/errs"
	"github.com/go-primegap/miner/internal/header"
	"github.com/go-primegap/miner/internal/logx"
	"github.com/go-primegap/miner/std"
)

const kcpSalt = "gap-miner-pool-v1"

// KCPConfig configures a KCPSource dial, mirroring the subset of
// client/main.go's Config relevant to a single outbound session.
type KCPConfig struct {
	RemoteAddr  string
	Key         string
	DataShard   int
	ParityShard int
	UseTCP      bool   // dial over tcpraw instead of raw UDP, mirrors the teacher's --tcp
	Obfuscate   bool   // wrap both smux streams in std.QPPPort
	QPPCount    int
	Crypt       string // kcp block cipher name, see std.SelectBlockCrypt; "" => aes-128
	Compress    bool   // snappy-compress each smux stream, see std.NewCompStream
}

// KCPSource dials the pool over kcp-go (optionally tcpraw-emulated TCP),
// multiplexes one smux session into a getwork-poll stream and a submit
// stream, and HMAC-SHA256-signs every submission with a pbkdf2-derived
// session key so a man-in-the-middle on the transport cannot forge
// submit calls (the PoW itself is public once submitted, but the
// transport envelope is not).
//
// Grounded on client/main.go's createConn/waitConn dial-and-reconnect
// loop and its BlockCrypt/smux/qpp wiring, generalized from kcptun's raw
// byte relay into a pair of line-delimited JSON-RPC streams, and on
// client/dial.go's DialWithOptions call for the non-tcpraw path.
type KCPSource struct {
	cfg       KCPConfig
	block     kcp.BlockCrypt
	hmacKey   []byte
	qppPad    *qpp.QuantumPermutationPad
	multiPort *std.MultiPort // non-nil when RemoteAddr names a host:minport-maxport range
	dialCount uint64         // round-robins across multiPort's range on each redial

	mu          sync.Mutex
	session     *smux.Session
	getworkRaw  *smux.Stream
	submitRaw   *smux.Stream
	getwork     io.ReadWriteCloser // getworkRaw, optionally QPP-wrapped
	submit      io.ReadWriteCloser // submitRaw, optionally QPP-wrapped
}

// NewKCPSource derives the session key material from cfg.Key and returns
// a KCPSource ready to dial lazily on first use. The block cipher is
// selected via std.SelectBlockCrypt (cfg.Crypt "" selects aes-128; an
// unknown or failing name falls back to AES keyed with the full 32-byte
// derived key), and cfg.Compress, if set, wraps both
// smux streams in std.NewCompStream before any QPP obfuscation layer.
func NewKCPSource(cfg KCPConfig) (*KCPSource, error) {
	pass := pbkdf2.Key([]byte(cfg.Key), []byte(kcpSalt), 4096, 48, sha1.New)
	method := cfg.Crypt
	if method == "" {
		method = "aes-128"
	}
	block, effective := std.SelectBlockCrypt(method, pass[:32])
	logx.Printf("worksource: kcp transport using %s cipher", effective)
	s := &KCPSource{
		cfg:     cfg,
		block:   block,
		hmacKey: pass[32:],
	}
	if cfg.Obfuscate {
		s.qppPad = qpp.NewQPP([]byte(cfg.Key), uint16(cfg.QPPCount))
	}
	if mp, err := std.ParseMultiPort(cfg.RemoteAddr); err == nil {
		s.multiPort = mp
	}
	return s, nil
}

var _ Source = (*KCPSource)(nil)

// dialAddr returns the host:port to dial next. When cfg.RemoteAddr named a
// port range, it round-robins across that range on every redial, spreading
// reconnects across the pool's listener set; otherwise it's just
// cfg.RemoteAddr unchanged.
func (s *KCPSource) dialAddr() string {
	if s.multiPort == nil {
		return s.cfg.RemoteAddr
	}
	span := s.multiPort.MaxPort - s.multiPort.MinPort + 1
	port := s.multiPort.MinPort + (s.dialCount % span)
	s.dialCount++
	return s.multiPort.Host + ":" + strconv.FormatUint(port, 10)
}

func (s *KCPSource) dialConn() (net.PacketConn, net.Addr, error) {
	if !s.cfg.UseTCP {
		return nil, nil, nil
	}
	addr := s.dialAddr()
	raddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	conn, err := tcpraw.Dial("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	return conn, raddr, nil
}

// sessionHandles bundles the raw smux streams (for deadline control) with
// their read/write front-ends (QPP-wrapped when Obfuscate is set).
type sessionHandles struct {
	getworkRaw *smux.Stream
	submitRaw  *smux.Stream
	getwork    io.ReadWriteCloser
	submit     io.ReadWriteCloser
}

// ensureSession returns the live smux session and stream handles, dialing
// (or redialing after a prior failure) as needed.
func (s *KCPSource) ensureSession() (sessionHandles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil && !s.session.IsClosed() {
		return sessionHandles{s.getworkRaw, s.submitRaw, s.getwork, s.submit}, nil
	}

	var kcpConn *kcp.UDPSession
	var err error
	if s.cfg.UseTCP {
		conn, raddr, derr := s.dialConn()
		if derr != nil {
			return sessionHandles{}, &errs.WorkSourceError{Op: "kcp-dial", Err: derr}
		}
		kcpConn, err = kcp.NewConn2(raddr, s.block, s.cfg.DataShard, s.cfg.ParityShard, conn)
	} else {
		kcpConn, err = kcp.DialWithOptions(s.dialAddr(), s.block, s.cfg.DataShard, s.cfg.ParityShard)
	}
	if err != nil {
		return sessionHandles{}, &errs.WorkSourceError{Op: "kcp-dial", Err: err}
	}
	kcpConn.SetStreamMode(true)
	kcpConn.SetWriteDelay(false)

	smuxCfg, err := std.BuildSmuxConfig(1, 4194304, 65536, 32768, 10)
	if err != nil {
		return sessionHandles{}, &errs.WorkSourceError{Op: "smux-config", Err: err}
	}
	session, err := smux.Client(kcpConn, smuxCfg)
	if err != nil {
		return sessionHandles{}, &errs.WorkSourceError{Op: "smux-client", Err: err}
	}

	getworkStream, err := session.OpenStream()
	if err != nil {
		session.Close()
		return sessionHandles{}, &errs.WorkSourceError{Op: "smux-open-getwork", Err: err}
	}
	submitStream, err := session.OpenStream()
	if err != nil {
		session.Close()
		return sessionHandles{}, &errs.WorkSourceError{Op: "smux-open-submit", Err: err}
	}

	var getworkIO, submitIO io.ReadWriteCloser = getworkStream, submitStream
	if s.cfg.Compress {
		getworkIO = std.NewCompStream(getworkStream)
		submitIO = std.NewCompStream(submitStream)
	}
	if s.qppPad != nil {
		seed := []byte(s.cfg.Key)
		getworkIO = std.NewQPPPort(getworkIO, s.qppPad, seed)
		submitIO = std.NewQPPPort(submitIO, s.qppPad, seed)
	}

	logx.Printf("worksource: kcp session established to %s", s.cfg.RemoteAddr)
	s.session = session
	s.getworkRaw = getworkStream
	s.submitRaw = submitStream
	s.getwork = getworkIO
	s.submit = submitIO
	return sessionHandles{getworkStream, submitStream, getworkIO, submitIO}, nil
}

type kcpGetWorkRequest struct {
	Op string `json:"op"`
}

type kcpGetWorkResponse struct {
	Header string `json:"header"`
}

// GetWork writes a single getwork request and reads back one
// newline-delimited JSON response on the dedicated getwork stream.
func (s *KCPSource) GetWork(ctx context.Context) (*header.Header, error) {
	handles, err := s.ensureSession()
	if err != nil {
		return nil, err
	}

	if dl, ok := ctx.Deadline(); ok {
		handles.getworkRaw.SetDeadline(dl)
	} else {
		handles.getworkRaw.SetDeadline(time.Now().Add(30 * time.Second))
	}

	enc := json.NewEncoder(handles.getwork)
	if err := enc.Encode(kcpGetWorkRequest{Op: "getwork"}); err != nil {
		return nil, &errs.WorkSourceError{Op: "kcp-getwork-write", Err: err}
	}

	var resp kcpGetWorkResponse
	if err := json.NewDecoder(bufio.NewReader(handles.getwork)).Decode(&resp); err != nil {
		return nil, &errs.WorkSourceError{Op: "kcp-getwork-read", Err: err}
	}
	h, err := header.FromHex(resp.Header)
	if err != nil {
		return nil, &errs.WorkSourceError{Op: "kcp-getwork-parse", Err: err}
	}
	return h, nil
}

type kcpSubmitRequest struct {
	Header string `json:"header"`
	Tag    string `json:"tag"` // hex HMAC-SHA256 over Header, keyed by hmacKey
}

type kcpSubmitResponse struct {
	Accepted bool `json:"accepted"`
}

// Submit writes an HMAC-tagged submit request on the dedicated submit
// stream and reads back the pool's accept/reject verdict.
func (s *KCPSource) Submit(ctx context.Context, h *header.Header) (bool, error) {
	handles, err := s.ensureSession()
	if err != nil {
		return false, err
	}

	if dl, ok := ctx.Deadline(); ok {
		handles.submitRaw.SetDeadline(dl)
	} else {
		handles.submitRaw.SetDeadline(time.Now().Add(30 * time.Second))
	}

	hx := h.Hex()
	req := kcpSubmitRequest{Header: hx, Tag: s.signTag(hx)}

	enc := json.NewEncoder(handles.submit)
	if err := enc.Encode(req); err != nil {
		return false, &errs.WorkSourceError{Op: "kcp-submit-write", Err: err}
	}

	var resp kcpSubmitResponse
	if err := json.NewDecoder(bufio.NewReader(handles.submit)).Decode(&resp); err != nil {
		return false, &errs.WorkSourceError{Op: "kcp-submit-read", Err: err}
	}
	return resp.Accepted, nil
}

// signTag returns the hex HMAC-SHA256 tag over hexHeader, keyed by the
// pbkdf2-derived session key, so the pool can reject submissions that
// didn't traverse this session.
func (s *KCPSource) signTag(hexHeader string) string {
	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write([]byte(hexHeader))
	sum := mac.Sum(nil)
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(sum)*2)
	for i, b := range sum {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0F]
	}
	return string(out)
}

// Close tears down the underlying smux session, if any.
func (s *KCPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	err := s.session.Close()
	s.session = nil
	return err
}
