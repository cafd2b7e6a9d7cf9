// Package wa connects the conversation engine to WhatsApp.
package wa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"

	"smartbudget/internal/metrics"
)

const unsupportedMessageReply = "I can only read text messages for now. Tell me about your income, expenses or savings goals!"

// Processor answers one message of a conversation.
type Processor interface {
	Process(ctx context.Context, sessionID, text string) string
}

// Config holds WhatsApp settings.
type Config struct {
	StorePath string
	LogLevel  string
}

// Gateway receives WhatsApp messages and replies through the processor.
type Gateway struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	processor Processor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	sendText  func(ctx context.Context, to types.JID, text string) error
	ctx       context.Context
}

// New opens the device store and prepares the client. Call Start to connect.
func New(ctx context.Context, cfg Config, processor Processor, metrics *metrics.Metrics, logger *slog.Logger) (*Gateway, error) {
	waLogger := NewLogger(logger, cfg.LogLevel)
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.StorePath)
	container, err := sqlstore.New(ctx, "sqlite", dsn, waLogger.Sub("store"))
	if err != nil {
		return nil, fmt.Errorf("open whatsapp store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}

	g := &Gateway{
		client:    whatsmeow.NewClient(device, waLogger.Sub("client")),
		container: container,
		processor: processor,
		metrics:   metrics,
		logger:    logger.With("component", "whatsapp"),
		ctx:       ctx,
	}
	g.sendText = g.send
	g.client.AddEventHandler(g.handleEvent)
	return g, nil
}

// Start connects to WhatsApp. Unpaired devices log the pairing QR codes.
func (g *Gateway) Start(ctx context.Context) error {
	g.ctx = ctx
	if g.client.Store.ID == nil {
		qrChan, err := g.client.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("whatsapp qr channel: %w", err)
		}
		if err := g.client.Connect(); err != nil {
			return fmt.Errorf("whatsapp connect: %w", err)
		}
		go func() {
			for item := range qrChan {
				if item.Event == "code" {
					g.logger.Info("scan whatsapp pairing code", "code", item.Code)
					continue
				}
				g.logger.Info("whatsapp pairing event", "event", item.Event)
			}
		}()
		return nil
	}
	if err := g.client.Connect(); err != nil {
		return fmt.Errorf("whatsapp connect: %w", err)
	}
	g.logger.Info("whatsapp connected", "jid", g.client.Store.ID.String())
	return nil
}

// Close disconnects the client and closes the device store.
func (g *Gateway) Close() error {
	g.client.Disconnect()
	return g.container.Close()
}

// SendText sends a plain text message.
func (g *Gateway) SendText(ctx context.Context, to types.JID, text string) error {
	return g.sendText(ctx, to, text)
}

func (g *Gateway) send(ctx context.Context, to types.JID, text string) error {
	_, err := g.client.SendMessage(ctx, to, &waProto.Message{Conversation: proto.String(text)})
	if err != nil {
		g.metrics.Errors.WithLabelValues("whatsapp_send").Inc()
		return fmt.Errorf("whatsapp send: %w", err)
	}
	return nil
}

func (g *Gateway) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		go g.handleMessage(g.ctx, v)
	case *events.Connected:
		g.logger.Info("whatsapp session ready")
	case *events.LoggedOut:
		g.logger.Warn("whatsapp logged out", "reason", v.Reason.String())
	}
}

func (g *Gateway) handleMessage(ctx context.Context, evt *events.Message) {
	if evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	g.metrics.IncomingMessages.WithLabelValues("whatsapp").Inc()

	chat := evt.Info.Chat
	text := extractText(evt.Message)
	if text == "" {
		g.logger.Debug("ignoring non-text message", "type", detectMessageType(evt.Message), "chat", chat.String())
		if err := g.sendText(ctx, chat, unsupportedMessageReply); err != nil {
			g.logger.Warn("failed sending reply", "error", err)
		}
		return
	}

	reply := g.processor.Process(ctx, SessionID(evt.Info.Sender), text)
	if err := g.sendText(ctx, chat, reply); err != nil {
		g.logger.Error("failed sending reply", "error", err, "chat", chat.String())
	}
}

// SessionID maps a WhatsApp sender to its conversation session.
func SessionID(jid types.JID) string {
	return "wa:" + jid.ToNonAD().String()
}

func detectMessageType(msg *waProto.Message) string {
	switch {
	case msg == nil:
		return "unknown"
	case msg.GetConversation() != "":
		return "text"
	case msg.ExtendedTextMessage != nil:
		return "extended_text"
	case msg.ImageMessage != nil:
		return "image"
	case msg.VideoMessage != nil:
		return "video"
	case msg.AudioMessage != nil:
		return "audio"
	case msg.DocumentMessage != nil:
		return "document"
	default:
		return "unknown"
	}
}

func extractText(msg *waProto.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.GetConversation() != "":
		return strings.TrimSpace(msg.GetConversation())
	case msg.ExtendedTextMessage != nil:
		return strings.TrimSpace(msg.GetExtendedTextMessage().GetText())
	default:
		return ""
	}
}
