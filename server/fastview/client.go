package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second

	// The rate at which pending updates are flushed to the client.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Publisher pushes updates unidirectionally to a single web client over a
// websocket. Updates must be idempotent: when several arrive between two
// flushes only the latest is sent, since it fully specifies the client state.
type Publisher[T any] struct {
	updates <-chan T
	ws      *websock
	rootCtx context.Context
}

// NewPublisher upgrades the request to a websocket and returns a publisher
// for the passed updates chan.
func NewPublisher[T any](
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Publisher[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}

	return &Publisher[T]{
		updates: updates,
		ws:      newWebSocket(ws),
		rootCtx: r.Context(),
	}, nil
}

// Sync runs the read, ping-pong and publish routines until the client
// disconnects, the updates chan closes, or an unexpected error occurs.
// Client disconnects return nil.
func (pub *Publisher[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(pub.rootCtx)

	group.Go(func() error {
		return pub.readMessages(groupCtx)
	})
	group.Go(func() error {
		return pub.pingPong(groupCtx)
	})
	group.Go(func() error {
		return pub.publish(groupCtx)
	})

	if err := group.Wait(); err != nil && !isClosure(err) {
		return err
	}
	return nil
}

// Close closes the websocket; Sync must have returned.
func (pub *Publisher[T]) Close() {
	pub.ws.Close()
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// Runs the ping-pong for the client liveness check.
// NOTE: this requires readMessages to be running so that the pong handler is called.
func (pub *Publisher[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	pub.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := pub.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (pub *Publisher[T]) ping(ctx context.Context) error {
	return pub.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %w", err, err)
				}
			}
			return
		})
}

// readMessages drains client messages, which also services control frames.
// Errors returned by websocket Read methods are permanent, hence any error
// must trigger full teardown.
func (pub *Publisher[T]) readMessages(ctx context.Context) error {
	for {
		err := pub.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// publish coalesces incoming updates and flushes the latest on each tick.
func (pub *Publisher[T]) publish(ctx context.Context) error {
	var pending *T
	flusher := channerics.NewTicker(ctx.Done(), pubResolution)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-pub.updates:
			if !ok {
				// Graceful input channel closure; flush what remains.
				return pub.write(ctx, pending)
			}
			pending = &update
		case <-flusher:
			if err := pub.write(ctx, pending); err != nil {
				return err
			}
			pending = nil
		}
	}
}

func (pub *Publisher[T]) write(ctx context.Context, update *T) error {
	if update == nil {
		return nil
	}

	return pub.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				return fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
			}

			if writeErr = ws.WriteJSON(*update); writeErr != nil && isError(writeErr) {
				writeErr = fmt.Errorf("publish failed: %T %w", writeErr, writeErr)
			}
			return
		})
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
