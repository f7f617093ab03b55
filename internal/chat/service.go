package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pawmart/storefront/pkg/config"
	pkgerrors "github.com/pawmart/storefront/pkg/errors"
	"github.com/pawmart/storefront/pkg/logger"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	eventBuffer      = 64
)

type conversationCreator interface {
	CreateSupportConversation(ctx context.Context) (int64, error)
}

// dialer matches websocket.Dialer so tests can swap the transport.
type dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// ServiceParams groups dependencies for the support chat bridge.
type ServiceParams struct {
	API    conversationCreator
	Jar    http.CookieJar
	Config config.ChatConfig
	Logger *logger.Logger
}

// Service bridges the storefront to the backend support chat. At most one
// conversation is live at a time; opening a new one tears down the old
// socket first, mirroring the one-widget-one-conversation UX.
type Service interface {
	Open(ctx context.Context) (*Conversation, error)
	Active() *Conversation
	Close() error
}

type service struct {
	api    conversationCreator
	dial   dialer
	cfg    config.ChatConfig
	logg   *logger.Logger
	mu     sync.Mutex
	active *Conversation
}

// NewService builds the chat bridge with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.API == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "conversation api is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	if strings.TrimSpace(params.Config.WSBaseURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "chat ws base url is required")
	}
	return &service{
		api: params.API,
		dial: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Jar:              params.Jar,
		},
		cfg:  params.Config,
		logg: params.Logger,
	}, nil
}

func (s *service) Open(ctx context.Context) (*Conversation, error) {
	conversationID, err := s.api.CreateSupportConversation(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create conversation")
	}

	endpoint := fmt.Sprintf("%s/ws/support/chat/%d/", strings.TrimRight(s.cfg.WSBaseURL, "/"), conversationID)
	conn, resp, err := s.dial.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dial chat socket")
	}

	conversation := newConversation(conversationID, conn, s.cfg.PingEvery, s.logg)

	s.mu.Lock()
	previous := s.active
	s.active = conversation
	s.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	s.logg.Info(s.logg.WithField(ctx, "conversation_id", conversationID), "chat.conversation_opened")
	return conversation, nil
}

func (s *service) Active() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *service) Close() error {
	s.mu.Lock()
	active := s.active
	s.active = nil
	s.mu.Unlock()
	if active != nil {
		active.Close()
	}
	return nil
}

// Conversation is one live chat socket. Events stream on Events(); the
// channel closes when the socket drops or Close is called.
type Conversation struct {
	id     int64
	conn   *websocket.Conn
	events chan Event
	logg   *logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConversation(id int64, conn *websocket.Conn, pingEvery time.Duration, logg *logger.Logger) *Conversation {
	c := &Conversation{
		id:     id,
		conn:   conn,
		events: make(chan Event, eventBuffer),
		logg:   logg,
		done:   make(chan struct{}),
	}
	go c.readPump()
	if pingEvery > 0 {
		go c.pingLoop(pingEvery)
	}
	return c
}

func (c *Conversation) ID() int64 {
	return c.id
}

func (c *Conversation) Events() <-chan Event {
	return c.events
}

// Send posts a text message into the conversation.
func (c *Conversation) Send(content string) error {
	if strings.TrimSpace(content) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message content is required")
	}
	return c.write(map[string]any{"type": "message", "content": content})
}

// SendTyping reports the shopper's typing state to the agent side.
func (c *Conversation) SendTyping(isTyping bool) error {
	return c.write(map[string]any{"type": "typing", "is_typing": isTyping})
}

// Close tears down the socket and closes the event stream.
func (c *Conversation) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		deadline := time.Now().Add(writeTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

func (c *Conversation) write(payload any) error {
	select {
	case <-c.done:
		return pkgerrors.New(pkgerrors.CodeConflict, "conversation is closed")
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write chat frame")
	}
	return nil
}

func (c *Conversation) readPump() {
	defer close(c.events)
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logg.Error(context.Background(), "chat.socket_closed", err)
				c.Close()
			}
			return
		}
		event, ok := decodeEvent(payload)
		if !ok {
			continue
		}
		select {
		case c.events <- event:
		default:
			// A stalled consumer drops the oldest frame rather than
			// blocking the socket.
			select {
			case <-c.events:
			default:
			}
			select {
			case c.events <- event:
			default:
			}
		}
	}
}

func (c *Conversation) pingLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			deadline := time.Now().Add(writeTimeout)
			err := c.conn.WriteControl(websocket.PingMessage, nil, deadline)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
