package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidMessage     = errors.New("invalid message")
)

type message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, payload T) error

type Middleware func(next HandlerFunc[any]) HandlerFunc[any]

// ErrorHandler receives every error returned by a handler or middleware.
// The connection stays open unless the handler closes it.
type ErrorHandler func(ctx context.Context, conn *websocket.Conn, err error)

type WSRouter struct {
	routes       map[string]HandlerFunc[any]
	middlewares  []Middleware
	errorHandler ErrorHandler
}

func New() *WSRouter {
	return &WSRouter{
		routes:       make(map[string]HandlerFunc[any]),
		errorHandler: func(context.Context, *websocket.Conn, error) {},
	}
}

// Use appends middlewares. The first one registered runs outermost.
func (r *WSRouter) Use(middlewares ...Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

func (r *WSRouter) OnError(handler ErrorHandler) {
	r.errorHandler = handler
}

// Handle registers handler for messageType, decoding the message payload into T.
// An absent or null payload leaves T at its zero value.
func Handle[T any](r *WSRouter, messageType string, handler HandlerFunc[T]) {
	r.routes[messageType] = func(ctx context.Context, conn *websocket.Conn, payload any) error {
		var input T
		raw, _ := payload.(json.RawMessage)
		if len(raw) > 0 && string(raw) != "null" {
			if err := json.Unmarshal(raw, &input); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
			}
		}

		return handler(ctx, conn, input)
	}
}

func (r *WSRouter) dispatch(ctx context.Context, conn *websocket.Conn, payload any) error {
	handler, ok := r.routes[GetMessageTypeFromCtx(ctx)]
	if !ok {
		return ErrUnknownMessageType
	}

	return handler(ctx, conn, payload)
}

// ServeConn reads messages until the connection fails or ctx is done.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	handler := HandlerFunc[any](r.dispatch)
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			r.errorHandler(ctx, conn, fmt.Errorf("%w: message must be an object with a type", ErrInvalidMessage))
			continue
		}

		msgCtx := context.WithValue(ctx, messageTypeKey, msg.Type)
		if err := handler(msgCtx, conn, msg.Payload); err != nil {
			r.errorHandler(msgCtx, conn, err)
		}
	}
}
