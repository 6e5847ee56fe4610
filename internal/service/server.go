package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/isseis/go-safe-frame-store/internal/payload"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
)

// Invoke method names, one per UI channel.
const (
	MethodSetSavePath        = "set-save-path"
	MethodGetSavePath        = "get-save-path"
	MethodSaveImage          = "save-image"
	MethodGetNextImageNumber = "get-next-image-number"
)

const (
	// DefaultMaxInFlight bounds how many requests are dispatched at once
	DefaultMaxInFlight = 4
	// MaxRequestSize bounds a single request line; frames are sent inline
	MaxRequestSize = payload.MaxEncodedSize + 64*1024
)

// Error definitions for the invoke transport
var (
	ErrUnknownMethod   = errors.New("unknown method")
	ErrInvalidParams   = errors.New("invalid params")
	ErrInvalidJSON     = errors.New("invalid request")
	ErrRequestTooLarge = errors.New("request too large")
)

// Request is one invoke call. ID correlates the response; a ULID is assigned
// when the caller leaves it empty.
type Request struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response answers exactly one Request and always carries its ID.
type Response struct {
	ID     string `json:"id"`
	Method string `json:"method,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

type setSavePathParams struct {
	Path string `json:"path"`
}

type saveImageParams struct {
	ImageData string `json:"imageData"`
}

// Dispatch runs one request against the service.
func (s *Service) Dispatch(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID, Method: req.Method}

	switch req.Method {
	case MethodGetSavePath:
		resp.Result = s.GetSavePath()
	case MethodGetNextImageNumber:
		resp.Result = s.GetNextImageNumber(ctx)
	case MethodSetSavePath:
		var p setSavePathParams
		if err := decodeParams(req.Params, &p); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Result = s.SetSavePath(p.Path)
	case MethodSaveImage:
		var p saveImageParams
		if err := decodeParams(req.Params, &p); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.Result = s.SaveImage(ctx, p.ImageData)
	default:
		resp.Error = fmt.Sprintf("%v: %q", ErrUnknownMethod, req.Method)
	}
	return resp
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", ErrInvalidParams)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Server exposes a Service over a line-delimited JSON stream: one Request per
// input line, one Response per output line. Requests are handled concurrently,
// so responses may arrive out of order and must be matched by ID.
type Server struct {
	svc         *Service
	maxInFlight int
	logger      *slog.Logger
	newID       func() string
	maxLine     int
}

// NewServer creates a Server for svc. maxInFlight <= 0 uses DefaultMaxInFlight.
func NewServer(svc *Service, maxInFlight int, logger *slog.Logger) *Server {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		svc:         svc,
		maxInFlight: maxInFlight,
		logger:      logger,
		newID:       func() string { return ulid.Make().String() },
		maxLine:     MaxRequestSize,
	}
}

// Serve reads requests from r until EOF or ctx is cancelled and writes the
// responses to w. It returns after every accepted request has been answered.
// A line longer than MaxRequestSize is discarded and answered with an error.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReaderSize(r, 64*1024)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxInFlight)

	var mu sync.Mutex
	enc := json.NewEncoder(w)
	reply := func(resp Response) error {
		mu.Lock()
		defer mu.Unlock()
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response %s: %w", resp.ID, err)
		}
		return nil
	}
	rejectLine := func(resp Response) error {
		if err := reply(resp); err != nil {
			return errors.Join(err, g.Wait())
		}
		return nil
	}

	var readErr error
	for gctx.Err() == nil {
		raw, tooLong, err := readLine(br, s.maxLine)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		if tooLong {
			resp := Response{ID: s.newID(), Error: fmt.Sprintf("%v: %v: exceeds %d bytes", ErrInvalidJSON, ErrRequestTooLarge, s.maxLine)}
			s.logger.Warn("Oversized request discarded", "id", resp.ID, "limit", s.maxLine)
			if err := rejectLine(resp); err != nil {
				return err
			}
			continue
		}
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp := Response{ID: s.newID(), Error: fmt.Sprintf("%v: %v", ErrInvalidJSON, err)}
			s.logger.Warn("Malformed request", "id", resp.ID, "error", err)
			if err := rejectLine(resp); err != nil {
				return err
			}
			continue
		}
		if req.ID == "" {
			req.ID = s.newID()
		}

		g.Go(func() error {
			s.logger.Debug("Dispatching request", "id", req.ID, "method", req.Method)
			return reply(s.svc.Dispatch(gctx, req))
		})
	}

	waitErr := g.Wait()
	if readErr != nil {
		return errors.Join(fmt.Errorf("failed to read requests: %w", readErr), waitErr)
	}
	if waitErr != nil {
		return waitErr
	}
	return ctx.Err()
}

// readLine returns the next line including its newline. A line longer than
// limit is consumed through its newline and reported with tooLong set and no
// data. io.EOF is returned only when no bytes remain.
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	var buf []byte
	read := 0
	for {
		chunk, err := br.ReadSlice('\n')
		read += len(chunk)
		if !tooLong {
			if read > limit {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case err == nil:
			return buf, tooLong, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return nil, false, io.EOF
			}
			return buf, tooLong, nil
		default:
			return nil, false, err
		}
	}
}
