package emailsource

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"fjacquet/budget-sync/internal/xmlutils"

	"golang.org/x/net/html/charset"
	"gopkg.in/xmlpath.v2"
)

// message is a decoded notification email.
type message struct {
	From      string
	Subject   string
	MessageID string
	Date      time.Time

	// HTML is the raw text/html body, empty for plain text messages.
	HTML string
	// Text is the visible text of the HTML body, or the text/plain body.
	Text string

	root *xmlpath.Node
}

// readMessage parses an RFC 5322 message and selects its readable body.
func readMessage(r io.Reader) (*message, error) {
	m, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	msg := &message{
		From:      m.Header.Get("From"),
		Subject:   decodeHeader(m.Header.Get("Subject")),
		MessageID: strings.Trim(strings.TrimSpace(m.Header.Get("Message-Id")), "<>"),
	}
	if addr, err := mail.ParseAddress(msg.From); err == nil {
		msg.From = addr.Address
	}
	if d, err := m.Header.Date(); err == nil {
		msg.Date = d
	}

	var plain string
	err = walkPart(m.Header.Get("Content-Type"), m.Header.Get("Content-Transfer-Encoding"), m.Body,
		func(mediaType, body string) {
			switch {
			case mediaType == "text/html" && msg.HTML == "":
				msg.HTML = body
			case mediaType == "text/plain" && plain == "":
				plain = body
			}
		})
	if err != nil {
		return nil, err
	}

	switch {
	case msg.HTML != "":
		text, err := xmlutils.VisibleText(strings.NewReader(msg.HTML))
		if err != nil {
			return nil, fmt.Errorf("reading html body: %w", err)
		}
		msg.Text = text
	case plain != "":
		msg.Text = plain
	default:
		return nil, errors.New("message has no text body")
	}
	return msg, nil
}

// htmlRoot parses the HTML body once for XPath evaluation.
func (m *message) htmlRoot() (*xmlpath.Node, error) {
	if m.root != nil {
		return m.root, nil
	}
	if m.HTML == "" {
		return nil, errors.New("xpath extractor on a message without html body")
	}
	root, err := xmlutils.ParseHTMLString(m.HTML)
	if err != nil {
		return nil, err
	}
	m.root = root
	return root, nil
}

// walkPart calls visit for every leaf text part, descending into multipart containers.
func walkPart(contentType, encoding string, body io.Reader, visit func(mediaType, body string)) error {
	if contentType == "" {
		contentType = "text/plain; charset=us-ascii"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("invalid content type %q: %w", contentType, err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("reading %s: %w", mediaType, err)
			}
			err = walkPart(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part, visit)
			if err != nil {
				return err
			}
		}
	}

	if !strings.HasPrefix(mediaType, "text/") {
		return nil
	}
	data, err := io.ReadAll(decodeTransfer(body, encoding))
	if err != nil {
		return fmt.Errorf("decoding %s body: %w", mediaType, err)
	}
	text, err := decodeCharset(data, params["charset"])
	if err != nil {
		return err
	}
	visit(mediaType, text)
	return nil
}

func decodeTransfer(r io.Reader, encoding string) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	default:
		return r
	}
}

func decodeCharset(data []byte, label string) (string, error) {
	switch strings.ToLower(label) {
	case "", "utf-8", "us-ascii":
		return string(data), nil
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decoding charset %q: %w", label, err)
	}
	return string(out), nil
}

func decodeHeader(value string) string {
	dec := mime.WordDecoder{CharsetReader: charset.NewReaderLabel}
	if out, err := dec.DecodeHeader(value); err == nil {
		return out
	}
	return value
}
