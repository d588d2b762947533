package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lumenchat/lumen-go-api/internal/chatid"
	"github.com/lumenchat/lumen-go-api/internal/dto"
	"github.com/lumenchat/lumen-go-api/internal/models"
	"github.com/lumenchat/lumen-go-api/internal/observability"
	"github.com/lumenchat/lumen-go-api/internal/repository"
)

const (
	feedSendBufferSize = 32
	writeRetryBackoff  = 250 * time.Millisecond
)

// ErrEmptyMessage indicates a send with neither text nor a usable attachment.
var ErrEmptyMessage = errors.New("message has no content")

// AttachmentInput wraps the raw bytes of a user-selected image file.
type AttachmentInput struct {
	Name string
	Data []byte
}

// ChatConnectionOptions wraps metadata extracted during the HTTP upgrade.
type ChatConnectionOptions struct {
	UserID        string
	CorrelationID string
	Context       context.Context
}

// ChatService owns the conversation feed: it appends messages, delivers
// full-snapshot updates to websocket subscribers, and applies the
// mark-read-on-observation side effect for direct conversations.
type ChatService interface {
	SendDirect(ctx context.Context, senderID, receiverID, text string, replyToID *uint, attachment *AttachmentInput) (dto.DirectMessageResponse, error)
	History(ctx context.Context, requesterID, peerID string) (dto.ChatSnapshot, error)
	ServeDirect(conn *websocket.Conn, opts ChatConnectionOptions, peerID string)
	ServeGroup(conn *websocket.Conn, opts ChatConnectionOptions, groupID uint)
	DeliverGroup(ctx context.Context, groupID uint)
	Start(ctx context.Context)
}

type chatService struct {
	directRepo   repository.DirectMessageRepository
	groupRepo    repository.GroupRepository
	groupMsgRepo repository.GroupMessageRepository
	encoder      AttachmentEncoder
	unread       *UnreadCache
	redis        *redis.Client
	redisStream  string
	nats         *nats.Conn
	natsSubject  string
	validator    *validator.Validate
	logger       zerolog.Logger
	tracer       trace.Tracer
	sanitizer    *bluemonday.Policy
	hub          *feedHub
	nodeID       string
}

// feedHub keeps track of active websocket clients per conversation room.
type feedHub struct {
	mu    sync.RWMutex
	rooms map[string]map[*feedClient]struct{}
	log   zerolog.Logger
}

type feedClient struct {
	conn    *websocket.Conn
	send    chan interface{}
	opts    ChatConnectionOptions
	roomID  string
	peerID  string
	service *chatService
	closed  chan struct{}
	once    sync.Once
	baseCtx context.Context

	// processed guards the mark-read side effect: message ids this client
	// has already observed, so re-deliveries cannot re-trigger writes.
	processedMu sync.Mutex
	processed   map[uint]struct{}
}

type feedEvent struct {
	Source  string    `json:"source"`
	Kind    string    `json:"kind"`
	ChatID  string    `json:"chat_id,omitempty"`
	GroupID uint      `json:"group_id,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// NewChatService creates the conversation feed service.
func NewChatService(
	directRepo repository.DirectMessageRepository,
	groupRepo repository.GroupRepository,
	groupMsgRepo repository.GroupMessageRepository,
	encoder AttachmentEncoder,
	unread *UnreadCache,
	redisClient *redis.Client,
	channelBase string,
	natsConn *nats.Conn,
	validate *validator.Validate,
	logger zerolog.Logger,
) ChatService {
	sanitizer := bluemonday.UGCPolicy()
	sanitizer.AllowElements("br")

	hub := &feedHub{
		rooms: make(map[string]map[*feedClient]struct{}),
		log:   logger.With().Str("component", "feed_hub").Logger(),
	}

	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":feed"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".feed"
	}

	return &chatService{
		directRepo:   directRepo,
		groupRepo:    groupRepo,
		groupMsgRepo: groupMsgRepo,
		encoder:      encoder,
		unread:       unread,
		redis:        redisClient,
		redisStream:  stream,
		nats:         natsConn,
		natsSubject:  subject,
		validator:    validate,
		logger:       logger.With().Str("component", "chat_service").Logger(),
		tracer:       otel.Tracer("github.com/lumenchat/lumen-go-api/internal/service/chat"),
		sanitizer:    sanitizer,
		hub:          hub,
		nodeID:       uuid.NewString(),
	}
}

func (s *chatService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// SendDirect appends a message to a direct conversation and fans the updated
// snapshot out to subscribers. The sender's composer is cleared optimistically
// by the client; the append itself is retried once before being dropped.
func (s *chatService) SendDirect(ctx context.Context, senderID, receiverID, text string, replyToID *uint, attachment *AttachmentInput) (dto.DirectMessageResponse, error) {
	if strings.TrimSpace(senderID) == "" {
		return dto.DirectMessageResponse{}, chatid.ErrUnauthenticated
	}

	chatID, err := chatid.Direct(senderID, receiverID)
	if err != nil {
		return dto.DirectMessageResponse{}, err
	}

	text = strings.TrimSpace(s.sanitizer.Sanitize(text))

	encoded := ""
	if attachment != nil {
		encoded, err = s.encoder.Encode(attachment.Name, attachment.Data)
		if err != nil {
			observability.AttachmentsEncoded().WithLabelValues("rejected").Inc()
			if text == "" {
				return dto.DirectMessageResponse{}, err
			}
			// Unusable attachment with text present: the send proceeds text-only.
			s.logger.Warn().Err(err).Str("chat_id", chatID).Msg("attachment dropped, sending text only")
			encoded = ""
		} else {
			observability.AttachmentsEncoded().WithLabelValues("ok").Inc()
		}
	}

	if text == "" && encoded == "" {
		return dto.DirectMessageResponse{}, ErrEmptyMessage
	}

	spanCtx, span := s.tracer.Start(ctx, "chat.send_direct", trace.WithAttributes(
		attribute.String("chat.id", chatID),
		attribute.Bool("chat.has_attachment", encoded != ""),
	))
	defer span.End()

	message := models.DirectMessage{
		ChatID:     chatID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Attachment: encoded,
		ReplyToID:  replyToID,
	}

	if err := s.appendWithRetry(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.DirectMessageResponse{}, err
	}

	observability.ChatMessagesSent().WithLabelValues("direct").Inc()
	s.unread.Invalidate(spanCtx, receiverID, senderID)

	s.deliverDirect(spanCtx, chatID, true)

	return dto.NewDirectMessageResponse(message), nil
}

func (s *chatService) appendWithRetry(ctx context.Context, message *models.DirectMessage) error {
	err := s.directRepo.Append(ctx, message)
	if err == nil {
		return nil
	}

	s.logger.Warn().Err(err).Str("chat_id", message.ChatID).Msg("append failed, retrying once")
	select {
	case <-time.After(writeRetryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}

	return s.directRepo.Append(ctx, message)
}

// History returns the ordered conversation and applies the same observation
// side effect as a feed delivery: everything addressed to the requester is
// marked read.
func (s *chatService) History(ctx context.Context, requesterID, peerID string) (dto.ChatSnapshot, error) {
	if strings.TrimSpace(requesterID) == "" {
		return dto.ChatSnapshot{}, chatid.ErrUnauthenticated
	}

	chatID, err := chatid.Direct(requesterID, peerID)
	if err != nil {
		return dto.ChatSnapshot{}, err
	}

	messages, err := s.directRepo.ListByChat(ctx, chatID)
	if err != nil {
		return dto.ChatSnapshot{}, err
	}

	marked := 0
	for _, message := range messages {
		if message.ReceiverID == requesterID && !message.IsRead {
			if err := s.directRepo.MarkRead(ctx, message.ID, requesterID); err != nil {
				s.logger.Warn().Err(err).Uint("message_id", message.ID).Msg("failed to mark message read")
				continue
			}
			marked++
		}
	}

	if marked > 0 {
		s.unread.Invalidate(ctx, requesterID, peerID)
		s.deliverDirect(ctx, chatID, true)
		if messages, err = s.directRepo.ListByChat(ctx, chatID); err != nil {
			return dto.ChatSnapshot{}, err
		}
	}

	return dto.ChatSnapshot{ChatID: chatID, Messages: dto.NewDirectMessageResponseSlice(messages)}, nil
}

// ServeDirect runs a websocket session subscribed to a direct conversation.
// Inbound frames are treated as text sends into the same conversation.
func (s *chatService) ServeDirect(conn *websocket.Conn, opts ChatConnectionOptions, peerID string) {
	chatID, err := chatid.Direct(opts.UserID, peerID)
	if err != nil {
		closeWithReason(conn, "invalid conversation")
		return
	}

	client := s.newClient(conn, opts, chatID, peerID)
	s.hub.register(client)
	observability.ChatConnectionsTotal().Inc()

	// Opening the conversation delivers the current snapshot and marks
	// everything addressed to this user read.
	s.deliverDirect(client.baseCtx, chatID, false)

	go client.writer()
	client.readDirect(peerID)
}

// ServeGroup runs a feed-only websocket session for a group conversation.
// Sends go through the REST group endpoints, which enforce membership.
func (s *chatService) ServeGroup(conn *websocket.Conn, opts ChatConnectionOptions, groupID uint) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	member, err := s.groupRepo.IsMember(ctx, groupID, opts.UserID)
	if err != nil || !member {
		closeWithReason(conn, "not a group member")
		return
	}

	client := s.newClient(conn, opts, chatid.Group(groupID), "")
	s.hub.register(client)
	observability.ChatConnectionsTotal().Inc()

	s.DeliverGroup(client.baseCtx, groupID)

	go client.writer()
	client.readDiscard()
}

func (s *chatService) newClient(conn *websocket.Conn, opts ChatConnectionOptions, roomID, peerID string) *feedClient {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	return &feedClient{
		conn:      conn,
		send:      make(chan interface{}, feedSendBufferSize),
		opts:      opts,
		roomID:    roomID,
		peerID:    peerID,
		service:   s,
		closed:    make(chan struct{}),
		baseCtx:   baseCtx,
		processed: make(map[uint]struct{}),
	}
}

// deliverDirect broadcasts the authoritative snapshot of a direct
// conversation to local subscribers, applies the mark-read observation pass,
// and re-broadcasts once if that pass changed state. The event is published
// to other nodes when this node originated a change.
func (s *chatService) deliverDirect(ctx context.Context, chatID string, announce bool) {
	marked := s.deliverDirectOnce(ctx, chatID)
	if marked > 0 {
		// The observation pass flipped read flags; subscribers need the
		// refreshed snapshot. The second pass finds nothing unread, so this
		// cannot loop.
		s.deliverDirectOnce(ctx, chatID)
	}

	if announce || marked > 0 {
		s.publishEvent(ctx, feedEvent{Kind: "direct", ChatID: chatID})
	}
}

func (s *chatService) deliverDirectOnce(ctx context.Context, chatID string) int {
	messages, err := s.directRepo.ListByChat(ctx, chatID)
	if err != nil {
		s.logger.Error().Err(err).Str("chat_id", chatID).Msg("failed to load conversation for delivery")
		return 0
	}

	snapshot := dto.ChatSnapshot{ChatID: chatID, Messages: dto.NewDirectMessageResponseSlice(messages)}
	s.hub.broadcast(chatID, snapshot)
	observability.ChatSnapshotsDelivered().WithLabelValues("direct").Inc()

	marked := 0
	for _, client := range s.hub.clients(chatID) {
		reader := client.opts.UserID
		readerMarked := 0
		for _, message := range messages {
			if message.ReceiverID != reader || message.IsRead {
				continue
			}
			if !client.markProcessed(message.ID) {
				continue
			}
			if err := s.directRepo.MarkRead(ctx, message.ID, reader); err != nil {
				// Release the claim so the next delivery retries the write.
				client.forgetProcessed(message.ID)
				s.logger.Warn().Err(err).Uint("message_id", message.ID).Msg("failed to mark message read")
				continue
			}
			readerMarked++
		}
		if readerMarked > 0 {
			s.unread.Invalidate(ctx, reader, client.peerID)
			marked += readerMarked
		}
	}

	return marked
}

// DeliverGroup broadcasts the authoritative snapshot of a group conversation.
func (s *chatService) DeliverGroup(ctx context.Context, groupID uint) {
	s.deliverGroupLocal(ctx, groupID)
	s.publishEvent(ctx, feedEvent{Kind: "group", GroupID: groupID})
}

func (s *chatService) deliverGroupLocal(ctx context.Context, groupID uint) {
	messages, err := s.groupMsgRepo.ListByGroup(ctx, groupID)
	if err != nil {
		s.logger.Error().Err(err).Uint("group_id", groupID).Msg("failed to load group for delivery")
		return
	}

	snapshot := dto.GroupSnapshot{GroupID: groupID, Messages: dto.NewGroupMessageResponseSlice(messages)}
	s.hub.broadcast(chatid.Group(groupID), snapshot)
	observability.ChatSnapshotsDelivered().WithLabelValues("group").Inc()
}

func (s *chatService) publishEvent(ctx context.Context, event feedEvent) {
	event.Source = s.nodeID
	event.SentAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal feed event")
		return
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish feed event to redis")
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish feed event to nats")
		}
	}
}

func (s *chatService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("feed redis subscription closed")
			return
		}
		s.handleEvent(ctx, []byte(msg.Payload))
	}
}

func (s *chatService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "lumen-feed", func(msg *nats.Msg) {
		s.handleEvent(ctx, msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats feed subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain feed nats subscription")
		}
	}()
}

func (s *chatService) handleEvent(ctx context.Context, data []byte) {
	var event feedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid feed event")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	switch event.Kind {
	case "direct":
		// announce=false: a remote delivery only republishes when the local
		// observation pass changed state, so cross-node echo terminates.
		s.deliverDirect(ctx, event.ChatID, false)
	case "group":
		s.deliverGroupLocal(ctx, event.GroupID)
	default:
		s.logger.Warn().Str("kind", event.Kind).Msg("unknown feed event kind")
	}
}

func (h *feedHub) register(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.rooms[client.roomID]; !exists {
		h.rooms[client.roomID] = make(map[*feedClient]struct{})
	}
	h.rooms[client.roomID][client] = struct{}{}
	h.log.Debug().Str("room_id", client.roomID).Str("user_id", client.opts.UserID).Msg("feed client connected")
}

func (h *feedHub) unregister(client *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[client.roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, client.roomID)
		}
	}
	h.log.Debug().Str("room_id", client.roomID).Str("user_id", client.opts.UserID).Msg("feed client disconnected")
}

func (h *feedHub) broadcast(roomID string, snapshot interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[roomID] {
		select {
		case client.send <- snapshot:
		default:
			h.log.Warn().Str("room_id", roomID).Str("user_id", client.opts.UserID).Msg("dropping snapshot for slow client")
		}
	}
}

func (h *feedHub) clients(roomID string) []*feedClient {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*feedClient, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		clients = append(clients, client)
	}
	return clients
}

// markProcessed records the message id and reports whether it was new.
func (c *feedClient) markProcessed(id uint) bool {
	c.processedMu.Lock()
	defer c.processedMu.Unlock()

	if _, seen := c.processed[id]; seen {
		return false
	}
	c.processed[id] = struct{}{}
	return true
}

// forgetProcessed drops a recorded id after a failed mark-read write so a
// later delivery can attempt it again.
func (c *feedClient) forgetProcessed(id uint) {
	c.processedMu.Lock()
	defer c.processedMu.Unlock()

	delete(c.processed, id)
}

func (c *feedClient) readDirect(peerID string) {
	defer c.close()

	for {
		var payload dto.ChatSendRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			c.service.logger.Debug().Err(err).Msg("feed read loop ended")
			return
		}

		if err := c.service.validator.Struct(payload); err != nil {
			c.service.logger.Warn().Err(err).Msg("rejecting invalid chat payload")
			continue
		}

		if _, err := c.service.SendDirect(c.baseCtx, c.opts.UserID, peerID, payload.Text, payload.ReplyToID, nil); err != nil {
			c.service.logger.Warn().Err(err).Msg("failed to process chat message")
		}
	}
}

// readDiscard drains inbound frames on feed-only sessions until the peer
// disconnects.
func (c *feedClient) readDiscard() {
	defer c.close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writer() {
	defer c.close()

	for {
		select {
		case snapshot, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(snapshot); err != nil {
				c.service.logger.Debug().Err(err).Msg("feed write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("feed ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *feedClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}

func closeWithReason(conn *websocket.Conn, reason string) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	_ = conn.Close()
}
