package payload

import (
	"encoding/json"
	"time"
)

const (
	maxContent = 2000
	maxEmbeds  = 10
	maxFields  = 25
)

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedMedia struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// EmbedData is the wire form of a rich embed, shared by outgoing builders
// and received messages.
type EmbedData struct {
	Title       string       `json:"title,omitempty"`
	Type        string       `json:"type,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Timestamp   *time.Time   `json:"timestamp,omitempty"`
	Color       int          `json:"color,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Image       *EmbedMedia  `json:"image,omitempty"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

// Embed builds an EmbedData.
type Embed struct {
	data EmbedData
}

func NewEmbed() *Embed { return &Embed{} }

func (e *Embed) SetTitle(s string) error {
	if err := checkLen("embed title", s, 0, 256); err != nil {
		return err
	}
	e.data.Title = s
	return nil
}

func (e *Embed) SetDescription(s string) error {
	if err := checkLen("embed description", s, 0, 4096); err != nil {
		return err
	}
	e.data.Description = s
	return nil
}

func (e *Embed) SetURL(u string) { e.data.URL = u }

func (e *Embed) SetColor(c int) error {
	if err := checkRange("embed color", c, 0, maxColor); err != nil {
		return err
	}
	e.data.Color = c
	return nil
}

func (e *Embed) SetTimestamp(t time.Time) { e.data.Timestamp = &t }

func (e *Embed) SetFooter(text, iconURL string) error {
	if err := checkLen("embed footer", text, 1, 2048); err != nil {
		return err
	}
	e.data.Footer = &EmbedFooter{Text: text, IconURL: iconURL}
	return nil
}

func (e *Embed) SetAuthor(name, url, iconURL string) error {
	if err := checkLen("embed author", name, 1, 256); err != nil {
		return err
	}
	e.data.Author = &EmbedAuthor{Name: name, URL: url, IconURL: iconURL}
	return nil
}

func (e *Embed) SetImage(url string)     { e.data.Image = &EmbedMedia{URL: url} }
func (e *Embed) SetThumbnail(url string) { e.data.Thumbnail = &EmbedMedia{URL: url} }

func (e *Embed) AddField(name, value string, inline bool) error {
	if err := checkCount("embed fields", len(e.data.Fields)+1, maxFields); err != nil {
		return err
	}
	if err := checkLen("embed field name", name, 1, 256); err != nil {
		return err
	}
	if err := checkLen("embed field value", value, 1, 1024); err != nil {
		return err
	}
	e.data.Fields = append(e.data.Fields, EmbedField{Name: name, Value: value, Inline: inline})
	return nil
}

// Data returns a copy of the built embed.
func (e *Embed) Data() EmbedData { return e.data }

func (e *Embed) MarshalJSON() ([]byte, error) { return json.Marshal(e.data) }

// Reference points a new message at the one it replies to.
type Reference struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

type messageData struct {
	Content          string      `json:"content,omitempty"`
	TTS              bool        `json:"tts,omitempty"`
	Embeds           []EmbedData `json:"embeds,omitempty"`
	Nonce            string      `json:"nonce,omitempty"`
	MessageReference *Reference  `json:"message_reference,omitempty"`
	Flags            int         `json:"flags,omitempty"`
}

// MessageSpec is accepted wherever a message body is submitted.
type MessageSpec interface {
	MessagePayload() (*Message, error)
}

// Text is the simplest MessageSpec: plain content.
type Text string

func (t Text) MessagePayload() (*Message, error) {
	m := NewMessage()
	if err := m.SetContent(string(t)); err != nil {
		return nil, err
	}
	return m, nil
}

// MessageOptions is the plain form of a message body.
type MessageOptions struct {
	Content string
	TTS     bool
	Embeds  []*Embed
	ReplyTo *Reference
}

func (o MessageOptions) MessagePayload() (*Message, error) {
	m := NewMessage()
	if err := m.SetContent(o.Content); err != nil {
		return nil, err
	}
	m.SetTTS(o.TTS)
	for _, e := range o.Embeds {
		if err := m.AddEmbed(e); err != nil {
			return nil, err
		}
	}
	if o.ReplyTo != nil {
		m.SetReply(*o.ReplyTo)
	}
	return m, nil
}

// Message is a validated message body for create and edit calls.
type Message struct {
	data messageData
}

func NewMessage() *Message { return &Message{} }

func (m *Message) MessagePayload() (*Message, error) { return m, nil }

func (m *Message) SetContent(s string) error {
	if err := checkLen("message content", s, 0, maxContent); err != nil {
		return err
	}
	m.data.Content = s
	return nil
}

func (m *Message) SetTTS(tts bool) { m.data.TTS = tts }

func (m *Message) AddEmbed(e *Embed) error {
	if err := checkCount("message embeds", len(m.data.Embeds)+1, maxEmbeds); err != nil {
		return err
	}
	m.data.Embeds = append(m.data.Embeds, e.Data())
	return nil
}

func (m *Message) SetReply(ref Reference) { m.data.MessageReference = &ref }

// SetNonce sets the client-generated token echoed back on MESSAGE_CREATE.
func (m *Message) SetNonce(nonce string) error {
	if err := checkLen("message nonce", nonce, 0, 64); err != nil {
		return err
	}
	m.data.Nonce = nonce
	return nil
}

// SetEphemeral marks an interaction reply as visible only to its invoker.
func (m *Message) SetEphemeral(on bool) {
	const ephemeral = 1 << 6
	if on {
		m.data.Flags |= ephemeral
	} else {
		m.data.Flags &^= ephemeral
	}
}

func (m *Message) Content() string { return m.data.Content }
func (m *Message) Nonce() string   { return m.data.Nonce }

// Empty reports whether the message has neither content nor embeds.
func (m *Message) Empty() bool { return m.data.Content == "" && len(m.data.Embeds) == 0 }

func (m *Message) MarshalJSON() ([]byte, error) { return json.Marshal(m.data) }
