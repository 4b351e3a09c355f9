// Package remote implements the reference contract's locally-relevant
// subset over a websocket connection, grounded on the gorilla/websocket
// dependency present in Roasbeef-substrate's module graph and on
// protoactor-go's actor.Context method naming (Self/Sender/Message/Respond)
// for how a remote send surfaces at the receiving end.
//
// spec.md section 6 scopes remote references to tell, ask, start, stop, and
// supervisor-registration: link, unlink, spawn-family, and mailbox
// inspection are not meaningful across a process boundary and fail with
// actor.ErrNotSupportedRemotely. No actor-specific wire format is defined;
// frames reuse the same encoding/gob envelope-body codec durablemailbox
// uses, kept private to these two collaborators rather than promoted to a
// protocol the core depends on.
package remote

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/arvostack/actorcore/actor"
	"github.com/arvostack/actorcore/logger"

	"github.com/gorilla/websocket"
)

// frameKind distinguishes the handful of message shapes that travel over a
// remote connection.
type frameKind uint8

const (
	frameTell frameKind = iota
	frameAsk
	frameAskReply
	frameAskFault
)

// frame is the private wire shape. Payload and FaultMsg are gob-encoded
// separately from the frame header so the receiver can decode the header
// without knowing the payload's concrete type up front.
type frame struct {
	Kind      frameKind
	RequestID uint64
	Payload   []byte
	FaultMsg  string
}

func encodeFrame(f frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFrame(body []byte) (frame, error) {
	var f frame
	err := gob.NewDecoder(bytes.NewReader(body)).Decode(&f)
	return f, err
}

func encodePayload(payload interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodePayload(body []byte) (interface{}, error) {
	var payload interface{}
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Reference is a client-side handle that looks enough like actor.Reference
// to serve as an ask/tell target across a websocket connection. It is not an
// *actor.Reference, so it cannot be linked as a local supervisor's child;
// its own Link and Unlink always fail.
type Reference struct {
	conn *websocket.Conn

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]*actor.Future
	closed   bool
	started  bool
	writeMu  sync.Mutex
	handlers sync.WaitGroup
}

// Dial opens a websocket connection to addr and returns an unstarted remote
// Reference. Start must be called before Tell/Ask will deliver anything.
func Dial(addr string) (*Reference, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: dial: %w", err)
	}
	return &Reference{conn: conn, pending: make(map[uint64]*actor.Future)}, nil
}

// Start begins reading frames from the connection in a background
// goroutine, resolving pending asks as replies arrive.
func (r *Reference) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.mu.Unlock()

	r.handlers.Add(1)
	go r.readLoop()
	return nil
}

func (r *Reference) readLoop() {
	defer r.handlers.Done()
	for {
		_, body, err := r.conn.ReadMessage()
		if err != nil {
			r.failAllPending(fmt.Errorf("remote: connection closed: %w", err))
			return
		}
		f, err := decodeFrame(body)
		if err != nil {
			logger.Log(fmt.Sprintf("remote: malformed frame: %v", err))
			continue
		}
		r.handleFrame(f)
	}
}

func (r *Reference) handleFrame(f frame) {
	switch f.Kind {
	case frameAskReply:
		r.resolvePending(f.RequestID, func(fut *actor.Future) {
			payload, err := decodePayload(f.Payload)
			if err != nil {
				fut.Fault(err)
				return
			}
			fut.Deliver(payload)
		})
	case frameAskFault:
		r.resolvePending(f.RequestID, func(fut *actor.Future) {
			fut.Fault(fmt.Errorf("remote: %s", f.FaultMsg))
		})
	default:
		logger.Log(fmt.Sprintf("remote: unexpected frame kind %d from peer", f.Kind))
	}
}

func (r *Reference) resolvePending(id uint64, apply func(*actor.Future)) {
	r.mu.Lock()
	fut, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
	}
	r.mu.Unlock()
	if ok {
		apply(fut)
	}
}

func (r *Reference) failAllPending(err error) {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[uint64]*actor.Future)
	r.mu.Unlock()
	for _, fut := range pending {
		fut.Fault(err)
	}
}

// Tell sends payload fire-and-forget across the connection.
func (r *Reference) Tell(payload interface{}) error {
	body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return r.send(frame{Kind: frameTell, Payload: body})
}

// Ask sends payload and returns a Future resolved by the peer's reply,
// fault, or the given timeout.
func (r *Reference) Ask(payload interface{}, timeout time.Duration) (*actor.Future, error) {
	body, err := encodePayload(payload)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	fut := actor.NewPendingFuture(timeout)
	r.pending[id] = fut
	r.mu.Unlock()

	if err := r.send(frame{Kind: frameAsk, RequestID: id, Payload: body}); err != nil {
		r.resolvePending(id, func(f *actor.Future) { f.Fault(err) })
		return nil, err
	}
	return fut, nil
}

func (r *Reference) send(f frame) error {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return actor.ErrNotStarted
	}
	body, err := encodeFrame(f)
	if err != nil {
		return err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	return r.conn.WriteMessage(websocket.BinaryMessage, body)
}

// Stop closes the underlying connection and faults every pending ask with
// actor.ErrActorStopped.
func (r *Reference) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.failAllPending(actor.ErrActorStopped)
	_ = r.conn.Close()
	r.handlers.Wait()
}

// RegisterSupervisor accepts sup but does nothing with it: sup is not
// recorded, and neither this Reference nor Serve reports a write error or a
// closed connection to it.
func (r *Reference) RegisterSupervisor(sup *actor.Reference) {
	_ = sup
}

// Link always fails: link/unlink are local-only operations.
func (r *Reference) Link(*actor.Reference) error { return actor.ErrNotSupportedRemotely }

// Unlink always fails: link/unlink are local-only operations.
func (r *Reference) Unlink(*actor.Reference) error { return actor.ErrNotSupportedRemotely }

// MailboxSize always fails: mailbox inspection is local-only.
func (r *Reference) MailboxSize() (int, error) { return 0, actor.ErrNotSupportedRemotely }

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Serve upgrades incoming HTTP connections to websockets and forwards every
// decoded frame to target as a Tell or Ask, bridging a local reference onto
// the network. It blocks handling a single connection's frames until the
// connection closes.
func Serve(target *actor.Reference, askTimeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Log(fmt.Sprintf("remote: upgrade failed: %v", err))
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		write := func(f frame) {
			body, err := encodeFrame(f)
			if err != nil {
				return
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteMessage(websocket.BinaryMessage, body)
		}

		for {
			_, body, err := conn.ReadMessage()
			if err != nil {
				return
			}
			f, err := decodeFrame(body)
			if err != nil {
				logger.Log(fmt.Sprintf("remote: malformed frame: %v", err))
				continue
			}

			payload, err := decodePayload(f.Payload)
			if err != nil {
				if f.Kind == frameAsk {
					write(frame{Kind: frameAskFault, RequestID: f.RequestID, FaultMsg: err.Error()})
				}
				continue
			}

			switch f.Kind {
			case frameTell:
				_ = target.Tell(payload, nil)
			case frameAsk:
				fut, err := target.Ask(payload, askTimeout)
				if err != nil {
					write(frame{Kind: frameAskFault, RequestID: f.RequestID, FaultMsg: err.Error()})
					continue
				}
				go func(reqID uint64, fut *actor.Future) {
					value, err := fut.Wait()
					if err != nil {
						write(frame{Kind: frameAskFault, RequestID: reqID, FaultMsg: err.Error()})
						return
					}
					body, err := encodePayload(value)
					if err != nil {
						write(frame{Kind: frameAskFault, RequestID: reqID, FaultMsg: err.Error()})
						return
					}
					write(frame{Kind: frameAskReply, RequestID: reqID, Payload: body})
				}(f.RequestID, fut)
			}
		}
	}
}
