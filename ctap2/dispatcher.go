package ctap2

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dantte-lp/goctap/cbor"
	"github.com/dantte-lp/goctap/ctaphid"
	"github.com/dantte-lp/goctap/device"
)

// Dispatcher sends CTAP2 commands to one device.Session and decodes
// their status-prefixed replies.
type Dispatcher struct {
	session *device.Session
	logger  *slog.Logger
	metrics MetricsReporter
}

// New returns a Dispatcher bound to session. logger may be nil, in
// which case slog.Default() is used.
func New(session *device.Session, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{session: session, logger: logger, metrics: noopMetrics{}}
}

// WithMetrics attaches a MetricsReporter to an existing Dispatcher. If mr
// is nil, the no-op reporter is restored.
func (d *Dispatcher) WithMetrics(mr MetricsReporter) *Dispatcher {
	if mr == nil {
		mr = noopMetrics{}
	}
	d.metrics = mr
	return d
}

// Call sends cmd with params (which may be nil for commands that take
// no parameters) and returns the decoded CBOR response body. It blocks
// until the authenticator replies, transparently absorbing KEEPALIVE
// frames.
func (d *Dispatcher) Call(cmd Command, params cbor.Value) (cbor.Value, error) {
	return d.CallContext(context.Background(), cmd, params)
}

// CallContext is Call with cancellation: if ctx is done before the
// authenticator replies, a CTAPHID_CANCEL is sent on the session's
// channel and ctx.Err() is returned once the in-flight Do() unblocks.
func (d *Dispatcher) CallContext(ctx context.Context, cmd Command, params cbor.Value) (cbor.Value, error) {
	start := time.Now()
	v, err := d.callContext(ctx, cmd, params)
	d.metrics.ObserveCall(cmd.String(), statusLabel(err), time.Since(start), err)
	return v, err
}

func (d *Dispatcher) callContext(ctx context.Context, cmd Command, params cbor.Value) (cbor.Value, error) {
	payload, err := encodeRequest(cmd, params)
	if err != nil {
		return nil, err
	}

	type result struct {
		body []byte
		err  error
	}
	done := make(chan result, 1)

	go func() {
		err := d.session.Do(func(tx *ctaphid.Transaction) error {
			if err := tx.Send(ctaphid.CmdCBOR, payload); err != nil {
				done <- result{nil, fmt.Errorf("ctap2: send %v: %w", cmd, err)}
				return nil
			}
			reply, err := tx.Receive(ctaphid.CmdCBOR, ctaphid.BlockForever)
			if err != nil {
				done <- result{nil, fmt.Errorf("ctap2: receive %v: %w", cmd, err)}
				return nil
			}
			done <- result{reply, nil}
			return nil
		})
		if err != nil {
			done <- result{nil, err}
		}
	}()

	select {
	case <-ctx.Done():
		_ = d.session.Cancel()
		<-done
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return decodeReply(r.body)
	}
}

// statusLabel extracts a Prometheus-friendly status label from a dispatch
// error: the raw authenticator status byte when err is a *DeviceError, an
// empty string for success, or "transport_error" for any other failure.
func statusLabel(err error) string {
	if err == nil {
		return ""
	}
	if code, ok := Classify(err); ok {
		return fmt.Sprintf("0x%02x", byte(code))
	}
	return "transport_error"
}

func encodeRequest(cmd Command, params cbor.Value) ([]byte, error) {
	if params == nil {
		return []byte{byte(cmd)}, nil
	}

	body, err := cbor.Encode(params)
	if err != nil {
		return nil, fmt.Errorf("ctap2: encode %v params: %w", cmd, err)
	}

	payload := make([]byte, 0, 1+len(body))
	payload = append(payload, byte(cmd))
	payload = append(payload, body...)
	return payload, nil
}

func decodeReply(reply []byte) (cbor.Value, error) {
	if len(reply) == 0 {
		return nil, fmt.Errorf("ctap2: %w", ErrEmptyReply)
	}

	status := Code(reply[0])
	if status != CodeSuccess {
		return nil, &DeviceError{Code: status}
	}

	if len(reply) == 1 {
		return nil, nil
	}

	v, _, err := cbor.Decode(reply[1:], cbor.DecodeOptions{Strict: false})
	if err != nil {
		return nil, fmt.Errorf("ctap2: decode response body: %w", err)
	}
	return v, nil
}
