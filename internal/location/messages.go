package location

import (
	"context"
	"encoding/json"

	"github.com/ringclient/ring-client-go/internal/api"
	ringerrors "github.com/ringclient/ring-client-go/internal/errors"
)

// SendMessage assigns the next sequence number and transmits the
// envelope. Sequence numbers are strictly increasing for the lifetime
// of the Location, including across reconnects. A send failure tears
// the connection down for reconnection.
func (l *Location) SendMessage(ctx context.Context, m *api.Message) error {
	if err := l.ensureConnection(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	conn := l.conn
	if conn == nil {
		l.mu.Unlock()
		return ringerrors.New(ringerrors.CodeSocketClosed, "connection lost before send")
	}
	l.seq++
	m.Seq = l.seq
	l.mu.Unlock()

	if err := conn.Emit("message", m); err != nil {
		l.scheduleReconnect("send failed")
		return err
	}
	return nil
}

// RequestList asks one asset for a list document (device list, room
// list). The response arrives as a message of the same type with the
// asset as src.
func (l *Location) RequestList(ctx context.Context, listType api.MessageType, assetID string) error {
	return l.SendMessage(ctx, &api.Message{Msg: listType, Dst: assetID})
}

// MessageWaiter is a one-shot wait for the next message of a given type
// from a given asset. Register it before sending the request that
// provokes the response, or the response can slip past.
type MessageWaiter struct {
	loc     *Location
	msgType api.MessageType
	src     string
	ch      chan json.RawMessage
}

func (w *MessageWaiter) cancelLocked() {
	close(w.ch)
}

// NextMessageOfType arms a waiter for the next message with the given
// type and source asset.
func (l *Location) NextMessageOfType(msgType api.MessageType, src string) *MessageWaiter {
	w := &MessageWaiter{
		loc:     l,
		msgType: msgType,
		src:     src,
		ch:      make(chan json.RawMessage, 1),
	}
	l.mu.Lock()
	l.msgWaiters = append(l.msgWaiters, w)
	l.mu.Unlock()
	return w
}

// Wait blocks for the matched message body. It fails if the context
// expires or the location is disconnected first.
func (w *MessageWaiter) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case body, ok := <-w.ch:
		if !ok {
			return nil, ringerrors.New(ringerrors.CodeSocketClosed, "location has been disconnected")
		}
		return body, nil
	case <-ctx.Done():
		w.loc.removeWaiter(w)
		return nil, ctx.Err()
	}
}

// Cancel removes the waiter without consuming a message.
func (w *MessageWaiter) Cancel() {
	w.loc.removeWaiter(w)
}

func (l *Location) removeWaiter(w *MessageWaiter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, other := range l.msgWaiters {
		if other == w {
			l.msgWaiters = append(l.msgWaiters[:i], l.msgWaiters[i+1:]...)
			return
		}
	}
}

// takeMatchingWaiters removes and returns every waiter matched by the
// message.
func (l *Location) takeMatchingWaiters(m *api.Message) []*MessageWaiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []*MessageWaiter
	remaining := l.msgWaiters[:0]
	for _, w := range l.msgWaiters {
		if w.msgType == m.Msg && w.src == m.Src {
			matched = append(matched, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	l.msgWaiters = remaining
	return matched
}

// GetList requests a list document from an asset and waits for the
// response. The waiter is armed before the request goes out.
func (l *Location) GetList(ctx context.Context, listType api.MessageType, assetID string) (json.RawMessage, error) {
	w := l.NextMessageOfType(listType, assetID)
	if err := l.RequestList(ctx, listType, assetID); err != nil {
		w.Cancel()
		return nil, err
	}
	return w.Wait(ctx)
}

// GetRoomList fetches the room list from one asset.
func (l *Location) GetRoomList(ctx context.Context, assetID string) (json.RawMessage, error) {
	return l.GetList(ctx, api.MessageTypeRoomGetList, assetID)
}
