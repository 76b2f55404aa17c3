package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"unibox/internal/core/platformconfig"
	"unibox/internal/core/shared/errors"
	"unibox/platform/logger"
)

const qrCodeTTL = 2 * time.Minute

// Gateway manages persistent WhatsApp sessions keyed by session name and
// implements dispatch.SessionSender. Session credentials live in the
// whatsmeow sqlstore; the connected flag is mirrored into the platform
// config repository so the outbound config resolver can see it.
type Gateway struct {
	container *sqlstore.Container
	configs   platformconfig.Repository
	logger    *logger.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	name   string
	client *whatsmeow.Client

	mu        sync.RWMutex
	qrCode    string
	qrImage   string
	qrExpires time.Time
}

// SessionStatus is the externally visible state of one session.
type SessionStatus struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	LoggedIn  bool   `json:"logged_in"`
	JID       string `json:"jid,omitempty"`
}

// NewGateway opens the whatsmeow device store and prepares the session
// registry. driver is "postgres" or "sqlite3".
func NewGateway(ctx context.Context, driver, dsn string, configs platformconfig.Repository, appLogger *logger.Logger) (*Gateway, error) {
	container, err := sqlstore.New(ctx, driver, dsn, waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("failed to create whatsmeow store: %w", err)
	}

	return &Gateway{
		container: container,
		configs:   configs,
		logger:    appLogger.WithModule("whatsapp-gateway"),
		sessions:  make(map[string]*session),
	}, nil
}

// Connect establishes (or resumes) the named session. Unregistered devices
// enter the QR pairing flow; the code becomes available via QRCode until
// scanned or expired.
func (g *Gateway) Connect(ctx context.Context, sessionName string) error {
	sess, err := g.getOrCreateSession(ctx, sessionName)
	if err != nil {
		return err
	}

	if sess.client.IsConnected() {
		return nil
	}

	if sess.client.Store.ID == nil {
		return g.connectWithPairing(ctx, sess)
	}

	if err := sess.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect session %s: %w", sessionName, err)
	}

	return nil
}

// QRCode returns the pending pairing code for a session, both raw and as a
// base64 PNG data URI. Empty when no pairing is in progress.
func (g *Gateway) QRCode(sessionName string) (code string, image string, err error) {
	sess := g.lookup(sessionName)
	if sess == nil {
		return "", "", errors.ErrSessionNotConnected
	}

	sess.mu.RLock()
	defer sess.mu.RUnlock()

	if sess.qrCode == "" || time.Now().After(sess.qrExpires) {
		return "", "", nil
	}
	return sess.qrCode, sess.qrImage, nil
}

// Status reports the connection state of a session.
func (g *Gateway) Status(sessionName string) (*SessionStatus, error) {
	sess := g.lookup(sessionName)
	if sess == nil {
		return nil, errors.ErrSessionNotConnected
	}

	status := &SessionStatus{
		Name:      sessionName,
		Connected: sess.client.IsConnected(),
		LoggedIn:  sess.client.IsLoggedIn(),
	}
	if sess.client.Store.ID != nil {
		status.JID = sess.client.Store.ID.String()
	}
	return status, nil
}

// Logout unpairs the device and drops the session.
func (g *Gateway) Logout(ctx context.Context, sessionName string) error {
	sess := g.lookup(sessionName)
	if sess == nil {
		return errors.ErrSessionNotConnected
	}

	if err := sess.client.Logout(ctx); err != nil {
		return fmt.Errorf("failed to logout session %s: %w", sessionName, err)
	}

	g.mu.Lock()
	delete(g.sessions, sessionName)
	g.mu.Unlock()

	g.forgetDevice(ctx, sessionName)

	return nil
}

// SendText delivers a text message through a connected session. The
// recipient is a phone number or a full JID.
func (g *Gateway) SendText(ctx context.Context, sessionName, recipientID, text string) (string, error) {
	sess := g.lookup(sessionName)
	if sess == nil || !sess.client.IsLoggedIn() {
		return "", errors.ErrSessionNotConnected
	}

	jid, err := toJID(recipientID)
	if err != nil {
		return "", err
	}

	msg := &waE2E.Message{Conversation: proto.String(text)}
	resp, err := sess.client.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send session message: %w", err)
	}

	g.logger.InfoWithFields("Message sent via session", map[string]interface{}{
		"session_name": sessionName,
		"recipient":    jid.String(),
		"message_id":   resp.ID,
	})

	return string(resp.ID), nil
}

// Stop disconnects every session. Called on shutdown.
func (g *Gateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for name, sess := range g.sessions {
		sess.client.Disconnect()
		g.logger.InfoWithFields("Session disconnected", map[string]interface{}{
			"session_name": name,
		})
	}
	g.sessions = make(map[string]*session)
}

// storedDeviceJID resolves the device a session name paired as, from the
// session-kind config row maintained by rememberDevice.
func (g *Gateway) storedDeviceJID(ctx context.Context, sessionName string) (types.JID, bool) {
	cfg, err := g.configs.GetBySessionName(ctx, sessionName)
	if err != nil || cfg.DeviceJID == nil || *cfg.DeviceJID == "" {
		return types.EmptyJID, false
	}

	jid, err := types.ParseJID(*cfg.DeviceJID)
	if err != nil {
		g.logger.WarnWithFields("Stored device jid is invalid", map[string]interface{}{
			"session_name": sessionName,
			"device_jid":   *cfg.DeviceJID,
		})
		return types.EmptyJID, false
	}
	return jid, true
}

func (g *Gateway) rememberDevice(sessionName string, jid types.JID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	deviceJID := jid.String()
	if err := g.configs.SetSessionDevice(ctx, sessionName, &deviceJID); err != nil {
		g.logger.ErrorWithFields("Failed to persist session device", map[string]interface{}{
			"session_name": sessionName,
			"device_jid":   deviceJID,
			"error":        err.Error(),
		})
	}
}

func (g *Gateway) forgetDevice(ctx context.Context, sessionName string) {
	if err := g.configs.SetSessionDevice(ctx, sessionName, nil); err != nil {
		g.logger.ErrorWithFields("Failed to clear session device", map[string]interface{}{
			"session_name": sessionName,
			"error":        err.Error(),
		})
	}
}

func (g *Gateway) lookup(sessionName string) *session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sessions[sessionName]
}

func (g *Gateway) getOrCreateSession(ctx context.Context, sessionName string) (*session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sess, ok := g.sessions[sessionName]; ok {
		return sess, nil
	}

	// Each session name owns its own device row. Handing a paired device
	// to a second name would open two sockets on the same credentials and
	// the server kicks both.
	var deviceStore *store.Device
	if jid, ok := g.storedDeviceJID(ctx, sessionName); ok {
		found, err := g.container.GetDevice(ctx, jid)
		if err != nil {
			return nil, fmt.Errorf("failed to load device for session %s: %w", sessionName, err)
		}
		deviceStore = found
	}
	if deviceStore == nil {
		deviceStore = g.container.NewDevice()
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Noop)
	sess := &session{name: sessionName, client: client}
	client.AddEventHandler(func(evt interface{}) {
		g.handleEvent(sess, evt)
	})

	g.sessions[sessionName] = sess
	return sess, nil
}

func (g *Gateway) connectWithPairing(ctx context.Context, sess *session) error {
	qrChan, err := sess.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}

	if err := sess.client.Connect(); err != nil {
		return fmt.Errorf("failed to connect session %s: %w", sess.name, err)
	}

	go g.consumeQRChannel(sess, qrChan)
	return nil
}

func (g *Gateway) consumeQRChannel(sess *session, qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			g.setQRCode(sess, item.Code)
		case "success":
			sess.mu.Lock()
			sess.qrCode = ""
			sess.qrImage = ""
			sess.mu.Unlock()

			if id := sess.client.Store.ID; id != nil {
				g.rememberDevice(sess.name, *id)
			}

			g.logger.InfoWithFields("Session paired", map[string]interface{}{
				"session_name": sess.name,
			})
		default:
			g.logger.WarnWithFields("QR pairing ended", map[string]interface{}{
				"session_name": sess.name,
				"event":        item.Event,
			})
		}
	}
}

func (g *Gateway) setQRCode(sess *session, code string) {
	image := ""
	if png, err := qrcode.Encode(code, qrcode.Medium, 256); err == nil {
		image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	}

	sess.mu.Lock()
	sess.qrCode = code
	sess.qrImage = image
	sess.qrExpires = time.Now().Add(qrCodeTTL)
	sess.mu.Unlock()

	var buf bytes.Buffer
	qrterminal.GenerateHalfBlock(code, qrterminal.L, &buf)
	fmt.Fprintln(os.Stdout, buf.String())

	g.logger.InfoWithFields("QR code generated", map[string]interface{}{
		"session_name": sess.name,
	})
}

func (g *Gateway) handleEvent(sess *session, evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		g.markConnected(sess.name, true)
	case *events.Disconnected:
		g.markConnected(sess.name, false)
	case *events.LoggedOut:
		g.markConnected(sess.name, false)
		g.logger.InfoWithFields("Session logged out", map[string]interface{}{
			"session_name": sess.name,
			"reason":       v.Reason,
		})
	}
}

func (g *Gateway) markConnected(sessionName string, connected bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := g.configs.SetSessionConnected(ctx, sessionName, connected); err != nil {
		g.logger.ErrorWithFields("Failed to update session connected flag", map[string]interface{}{
			"session_name": sessionName,
			"connected":    connected,
			"error":        err.Error(),
		})
	}

	g.logger.InfoWithFields("Session connection state changed", map[string]interface{}{
		"session_name": sessionName,
		"connected":    connected,
	})
}

// toJID parses a recipient into a WhatsApp JID. Bare phone numbers get the
// default user server.
func toJID(recipient string) (types.JID, error) {
	if strings.Contains(recipient, "@") {
		jid, err := types.ParseJID(recipient)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("%w: invalid jid %q", errors.ErrInvalidInput, recipient)
		}
		return jid, nil
	}

	digits := strings.TrimLeft(recipient, "+")
	if digits == "" {
		return types.EmptyJID, fmt.Errorf("%w: empty recipient", errors.ErrInvalidInput)
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}
