package worksource

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/go-primegap/miner/internal/errs"
	"github.com/go-primegap/miner/internal/header"
)

// HTTPSource implements Source as plain JSON-RPC over net/http, the
// default transport (closest to original_source's Rpc.cpp getwork/submit
// calls). When Compress is set, submit bodies are compressed in snappy's
// block format (snappy.Encode, not the stream framing format) and sent
// with Content-Encoding: x-snappy-framed, the same compression library
// kcptun uses for its own stream compression, here applied to single RPC
// bodies instead of a byte stream.
type HTTPSource struct {
	Endpoint string
	Client   *http.Client
	Compress bool
}

// NewHTTPSource returns an HTTPSource dialing endpoint, with a 30s
// request timeout matching the pool's expected poll cadence.
func NewHTTPSource(endpoint string, compress bool) *HTTPSource {
	return &HTTPSource{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: 30 * time.Second},
		Compress: compress,
	}
}

var _ Source = (*HTTPSource)(nil)

type getWorkResponse struct {
	Header string `json:"header"`
}

type submitRequest struct {
	Header string `json:"header"`
}

type submitResponse struct {
	Accepted bool `json:"accepted"`
}

// GetWork fetches the pool's current work unit from GET <endpoint>/getwork,
// parsing the hex wire form spec §6's getwork contract defines.
func (s *HTTPSource) GetWork(ctx context.Context) (*header.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.Endpoint+"/getwork", nil)
	if err != nil {
		return nil, &errs.WorkSourceError{Op: "getwork", Err: err}
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, &errs.WorkSourceError{Op: "getwork", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &errs.WorkSourceError{Op: "getwork", Err: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}
	var out getWorkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &errs.WorkSourceError{Op: "getwork", Err: err}
	}
	h, err := header.FromHex(out.Header)
	if err != nil {
		return nil, &errs.WorkSourceError{Op: "getwork", Err: err}
	}
	return h, nil
}

// Submit POSTs h's hex wire form to <endpoint>/submit.
func (s *HTTPSource) Submit(ctx context.Context, h *header.Header) (bool, error) {
	body, err := json.Marshal(submitRequest{Header: h.Hex()})
	if err != nil {
		return false, &errs.WorkSourceError{Op: "submit", Err: err}
	}

	var payload []byte
	encoding := ""
	if s.Compress {
		payload = snappy.Encode(nil, body)
		encoding = "x-snappy-framed"
	} else {
		payload = body
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint+"/submit", bytes.NewReader(payload))
	if err != nil {
		return false, &errs.WorkSourceError{Op: "submit", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return false, &errs.WorkSourceError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, &errs.WorkSourceError{Op: "submit", Err: errors.Errorf("unexpected status %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &errs.WorkSourceError{Op: "submit", Err: err}
	}
	var out submitResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return false, &errs.WorkSourceError{Op: "submit", Err: err}
	}
	return out.Accepted, nil
}
