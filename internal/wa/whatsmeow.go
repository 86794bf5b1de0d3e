package wa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"gowa-keeper/internal/helper"
)

// JIDResolver maps an instance id to its paired device JID. Empty string
// means the instance has no device yet and pairing is required.
type JIDResolver func(ctx context.Context, instanceID string) (string, error)

// WhatsmeowFactory builds production clients over the shared device
// container. Every call returns a fresh client handle; the manager swaps them
// wholesale on reinitialize.
type WhatsmeowFactory struct {
	Container *sqlstore.Container
	Resolve   JIDResolver
	Messages  MessageLog
}

func NewWhatsmeowFactory(container *sqlstore.Container, resolve JIDResolver, messages MessageLog) *WhatsmeowFactory {
	store.DeviceProps.Os = proto.String("GOWA Keeper")
	return &WhatsmeowFactory{Container: container, Resolve: resolve, Messages: messages}
}

func (f *WhatsmeowFactory) NewClient(instanceID string, handler EventHandler) (Client, error) {
	ctx := context.Background()

	var device *store.Device
	if f.Resolve != nil {
		if jid, err := f.Resolve(ctx, instanceID); err == nil && jid != "" {
			if parsed, perr := types.ParseJID(jid); perr == nil {
				if d, derr := f.Container.GetDevice(ctx, parsed); derr == nil && d != nil {
					device = d
				}
			}
		}
	}
	if device == nil {
		device = f.Container.NewDevice()
	}

	clientLog := waLog.Stdout("Client", "INFO", true)
	cli := whatsmeow.NewClient(device, clientLog)

	mc := &meowClient{
		cli:        cli,
		instanceID: instanceID,
		handler:    handler,
		messages:   f.Messages,
	}
	cli.AddEventHandler(mc.handleEvent)
	return mc, nil
}

type meowClient struct {
	cli        *whatsmeow.Client
	instanceID string
	handler    EventHandler
	messages   MessageLog
}

func (c *meowClient) Connect(ctx context.Context) error {
	if c.cli.Store.ID == nil {
		// Fresh device: drive QR pairing. The QR channel must be requested
		// before Connect, exactly like the teacher-facing docs demand.
		qrChan, err := c.cli.GetQRChannel(ctx)
		if err != nil && !errors.Is(err, whatsmeow.ErrQRStoreContainsID) {
			return fmt.Errorf("get QR channel: %w", err)
		}
		if err == nil {
			go c.forwardQR(qrChan)
		}
		return c.cli.Connect()
	}

	if err := c.cli.Connect(); err != nil {
		return err
	}

	// Paired device: wait for the login to come up so the caller's deadline
	// actually bounds the whole reconnect attempt.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.cli.IsConnected() && c.cli.IsLoggedIn() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *meowClient) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch {
		case evt.Event == "code":
			timeout := evt.Timeout
			if timeout <= 0 {
				timeout = 60 * time.Second
			}
			c.handler(EventQR{Code: evt.Code, ExpiresAt: time.Now().Add(timeout)})
		case evt.Event == "success":
			c.handler(EventAuthenticated{})
			return
		case evt.Event == "timeout":
			c.handler(EventAuthFailure{Reason: "qr timeout"})
			return
		case strings.HasPrefix(evt.Event, "err-"):
			c.handler(EventAuthFailure{Reason: evt.Event})
			return
		}
	}
}

func (c *meowClient) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.PairSuccess:
		c.handler(EventAuthenticated{})

	case *events.Connected:
		info := ProfileInfo{
			PushName: c.cli.Store.PushName,
			Platform: c.cli.Store.Platform,
		}
		if id := c.cli.Store.ID; id != nil {
			info.JID = id.String()
			info.PhoneNumber = id.User
		}
		c.handler(EventReady{Info: info})

	case *events.LoggedOut:
		c.handler(EventAuthFailure{Reason: fmt.Sprintf("logged out: %v", v.Reason)})

	case *events.StreamReplaced:
		c.handler(EventDisconnected{Reason: "stream replaced"})

	case *events.Disconnected:
		c.handler(EventDisconnected{Reason: "connection dropped"})

	case *events.Message:
		c.handler(EventMessage{Message: convertMessage(v)})
	}
}

func convertMessage(v *events.Message) Message {
	msg := Message{
		ID:        v.Info.ID,
		ChatID:    v.Info.Chat.String(),
		SenderID:  v.Info.Sender.String(),
		FromMe:    v.Info.IsFromMe,
		Timestamp: v.Info.Timestamp.Unix(),
	}
	switch {
	case v.Message.GetConversation() != "":
		msg.Text = v.Message.GetConversation()
	case v.Message.GetExtendedTextMessage().GetText() != "":
		msg.Text = v.Message.GetExtendedTextMessage().GetText()
	case v.Message.GetImageMessage() != nil:
		msg.MediaType = "image"
		msg.Text = v.Message.GetImageMessage().GetCaption()
	case v.Message.GetDocumentMessage() != nil:
		msg.MediaType = "document"
		msg.Text = v.Message.GetDocumentMessage().GetCaption()
	case v.Message.GetAudioMessage() != nil:
		msg.MediaType = "audio"
	case v.Message.GetVideoMessage() != nil:
		msg.MediaType = "video"
		msg.Text = v.Message.GetVideoMessage().GetCaption()
	}
	return msg
}

func (c *meowClient) Destroy() error {
	c.cli.RemoveEventHandlers()
	c.cli.Disconnect()
	return nil
}

func (c *meowClient) IsConnected() bool {
	return c.cli.IsConnected()
}

func (c *meowClient) ConnectionState() string {
	switch {
	case c.cli.IsConnected() && c.cli.IsLoggedIn():
		return "connected"
	case c.cli.IsConnected():
		return "connecting"
	default:
		return "disconnected"
	}
}

func (c *meowClient) Probe(ctx context.Context) error {
	if !c.cli.IsConnected() {
		return fmt.Errorf("probe %s: not connected", c.instanceID)
	}
	return c.cli.SendPresence(ctx, types.PresenceAvailable)
}

func (c *meowClient) SendText(ctx context.Context, chatID, text string) (*SendReceipt, error) {
	jid, err := helper.ParseChatJID(chatID)
	if err != nil {
		return nil, err
	}

	msg := &waE2E.Message{Conversation: proto.String(text)}
	resp, err := c.cli.SendMessage(ctx, jid, msg)
	if err != nil {
		return nil, err
	}

	c.record(ctx, Message{
		ID:        resp.ID,
		ChatID:    jid.String(),
		FromMe:    true,
		Text:      text,
		Timestamp: resp.Timestamp.Unix(),
	})
	return &SendReceipt{MessageID: resp.ID, Timestamp: resp.Timestamp.Unix()}, nil
}

func (c *meowClient) SendMedia(ctx context.Context, chatID string, media MediaPayload) (*SendReceipt, error) {
	jid, err := helper.ParseChatJID(chatID)
	if err != nil {
		return nil, err
	}

	var msg *waE2E.Message
	mediaType := "document"
	if helper.IsImageMime(media.MimeType) {
		uploaded, err := c.cli.Upload(ctx, media.Data, whatsmeow.MediaImage)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		imageMsg := &waE2E.ImageMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			Mimetype:      proto.String(media.MimeType),
			Caption:       proto.String(media.Caption),
			FileLength:    proto.Uint64(uploaded.FileLength),
			FileSHA256:    uploaded.FileSHA256,
			FileEncSHA256: uploaded.FileEncSHA256,
			MediaKey:      uploaded.MediaKey,
		}
		// Thumbnail failure is cosmetic, the message still goes out.
		if thumb, terr := helper.MakeThumbnail(media.Data, media.MimeType); terr == nil {
			imageMsg.JPEGThumbnail = thumb
		}
		msg = &waE2E.Message{ImageMessage: imageMsg}
		mediaType = "image"
	} else {
		uploaded, err := c.cli.Upload(ctx, media.Data, whatsmeow.MediaDocument)
		if err != nil {
			return nil, fmt.Errorf("upload document: %w", err)
		}
		msg = &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			Mimetype:      proto.String(media.MimeType),
			Title:         proto.String(media.FileName),
			FileName:      proto.String(media.FileName),
			Caption:       proto.String(media.Caption),
			FileLength:    proto.Uint64(uploaded.FileLength),
			FileSHA256:    uploaded.FileSHA256,
			FileEncSHA256: uploaded.FileEncSHA256,
			MediaKey:      uploaded.MediaKey,
		}}
	}

	resp, err := c.cli.SendMessage(ctx, jid, msg)
	if err != nil {
		return nil, err
	}

	c.record(ctx, Message{
		ID:        resp.ID,
		ChatID:    jid.String(),
		FromMe:    true,
		Text:      media.Caption,
		MediaType: mediaType,
		Timestamp: resp.Timestamp.Unix(),
	})
	return &SendReceipt{MessageID: resp.ID, Timestamp: resp.Timestamp.Unix()}, nil
}

func (c *meowClient) GetNumberID(ctx context.Context, number string) (*NumberCheck, error) {
	jid, err := helper.FormatPhoneNumber(number)
	if err != nil {
		return nil, err
	}
	results, err := c.cli.IsOnWhatsApp(ctx, []string{jid.User})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("unable to verify number %s", number)
	}
	return &NumberCheck{
		Query:        number,
		JID:          results[0].JID.String(),
		IsRegistered: results[0].IsIn,
	}, nil
}

func (c *meowClient) ListChats(ctx context.Context) ([]Chat, error) {
	contacts, err := c.cli.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, err
	}

	var chats []Chat
	for jid, contact := range contacts {
		// Linked-device entries duplicate the primary contact.
		if jid.Server == "lid" || jid.Server == types.GroupServer {
			continue
		}
		name := contact.FullName
		if name == "" {
			if contact.BusinessName != "" {
				name = contact.BusinessName
			} else if contact.PushName != "" {
				name = contact.PushName
			} else {
				name = jid.User
			}
		}
		chats = append(chats, Chat{ID: jid.String(), Name: name})
	}

	groups, err := c.cli.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		chats = append(chats, Chat{
			ID:      group.JID.String(),
			Name:    group.GroupName.Name,
			IsGroup: true,
		})
	}
	return chats, nil
}

func (c *meowClient) FetchMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if c.messages == nil {
		return nil, nil
	}
	return c.messages.ListByChat(ctx, c.instanceID, chatID, limit)
}

func (c *meowClient) GetContactByID(ctx context.Context, id string) (*Contact, error) {
	jid, err := helper.ParseChatJID(id)
	if err != nil {
		return nil, err
	}
	contact, err := c.cli.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return nil, err
	}

	name := contact.FullName
	if name == "" {
		if contact.BusinessName != "" {
			name = contact.BusinessName
		} else if contact.PushName != "" {
			name = contact.PushName
		} else {
			name = jid.User
		}
	}
	return &Contact{
		JID:         jid.String(),
		PhoneNumber: jid.User,
		Name:        name,
		PushName:    contact.PushName,
		IsBusiness:  contact.BusinessName != "",
	}, nil
}

func (c *meowClient) GetContactAbout(ctx context.Context, id string) (string, error) {
	jid, err := helper.ParseChatJID(id)
	if err != nil {
		return "", err
	}
	info, err := c.cli.GetUserInfo(ctx, []types.JID{jid})
	if err != nil {
		return "", err
	}
	return info[jid].Status, nil
}

func (c *meowClient) GetProfilePictureURL(ctx context.Context, entityID string) (string, error) {
	jid, err := helper.ParseChatJID(entityID)
	if err != nil {
		return "", err
	}
	pic, err := c.cli.GetProfilePictureInfo(ctx, jid, &whatsmeow.GetProfilePictureParams{Preview: false})
	if err != nil {
		if errors.Is(err, whatsmeow.ErrProfilePictureNotSet) ||
			errors.Is(err, whatsmeow.ErrProfilePictureUnauthorized) {
			return "", nil
		}
		return "", err
	}
	if pic == nil {
		return "", nil
	}
	return pic.URL, nil
}

func (c *meowClient) GetGroupInfo(ctx context.Context, id string) (*GroupInfo, error) {
	jid, err := types.ParseJID(id)
	if err != nil {
		return nil, fmt.Errorf("invalid group JID %q: %w", id, err)
	}
	group, err := c.cli.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, err
	}

	participants := make([]string, 0, len(group.Participants))
	for _, p := range group.Participants {
		participants = append(participants, p.JID.String())
	}
	return &GroupInfo{
		JID:          group.JID.String(),
		Name:         group.GroupName.Name,
		Topic:        group.GroupTopic.Topic,
		OwnerJID:     group.OwnerJID.String(),
		Participants: participants,
		CreatedAt:    group.GroupCreated.Unix(),
	}, nil
}

func (c *meowClient) record(ctx context.Context, msg Message) {
	if c.messages == nil {
		return
	}
	if err := c.messages.Append(ctx, c.instanceID, msg); err != nil {
		fmt.Println("⚠ Failed to record outbound message:", err)
	}
}
