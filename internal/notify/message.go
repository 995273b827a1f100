package notify

import (
	"fmt"
	"path/filepath"

	"github.com/wneessen/go-mail"
)

const contentTypePDF mail.ContentType = "application/pdf"

// Attachment references a file on disk; it is read when the message is encoded.
type Attachment struct {
	Path        string
	Filename    string
	ContentType string
}

type Message struct {
	From        string
	To          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// buildMsg composes the MIME message. Text is the primary body; HTML, when present, is the
// alternative part.
func buildMsg(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.From); err != nil {
		return nil, fmt.Errorf("from %q: %w", m.From, err)
	}
	if err := msg.To(m.To...); err != nil {
		return nil, fmt.Errorf("to %v: %w", m.To, err)
	}
	msg.Subject(m.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextPlain, m.Text)
	if m.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, m.HTML)
	}
	for _, a := range m.Attachments {
		name := a.Filename
		if name == "" {
			name = filepath.Base(a.Path)
		}
		ct := contentTypePDF
		if a.ContentType != "" {
			ct = mail.ContentType(a.ContentType)
		}
		msg.AttachFile(a.Path, mail.WithFileName(name), mail.WithFileContentType(ct))
	}
	return msg, nil
}
