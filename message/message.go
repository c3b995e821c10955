// Package message loads legacy rich-text messages and prepares them for
// normalization.
package message

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"mfx/markup"
	"mfx/state"
)

// ErrNotMessage is returned when input cannot possibly hold message markup,
// before any parsing is attempted.
var ErrNotMessage = errors.New("input is not recognized as a legacy message")

// Message is a single legacy message prepared for normalization.
type Message struct {
	SrcName string
	ID      string
	Root    *html.Node
}

// Prepare reads, decodes and parses a legacy message. Exports carry no stable
// message identifier, so every prepared message gets a fresh UUID used for
// logging and report naming. Empty or minimal markup is not an error - the
// normalization passes simply find nothing to do.
func Prepare(ctx context.Context, r io.Reader, srcName string, log *zap.Logger) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env := state.EnvFromContext(ctx)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read message source: %w", err)
	}

	// Binary containers (images, archives, office files) sometimes end up in
	// message dumps - refuse them before the parser makes tag soup out of
	// them.
	if kind, _ := filetype.Match(data); kind != filetype.Unknown {
		return nil, fmt.Errorf("%w: %s content (%s)", ErrNotMessage, kind.MIME.Value, srcName)
	}

	// Old messages predate the UTF-8 default, respect declared and sniffed
	// encodings.
	dr, err := charset.NewReader(bytes.NewReader(data), "text/html")
	if err != nil {
		return nil, fmt.Errorf("unable to determine message encoding: %w", err)
	}
	decoded, err := io.ReadAll(dr)
	if err != nil {
		return nil, fmt.Errorf("unable to decode message: %w", err)
	}

	root, err := markup.ParseBody(string(decoded))
	if err != nil {
		return nil, fmt.Errorf("unable to parse message: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("unable to generate message UUID: %w", err)
	}

	m := &Message{
		SrcName: srcName,
		ID:      id.String(),
		Root:    root,
	}

	log.Debug("Message prepared", zap.String("source", srcName), zap.String("id", m.ID))

	// Save pristine input for debugging
	if env.Rpt != nil {
		env.Rpt.StoreData(fmt.Sprintf("pristine/%s-%s", m.ID, filepath.Base(srcName)), data)
	}

	return m, nil
}

// Normalized serializes the message tree after normalization and stores a
// debug copy when a report is active.
func (m *Message) Normalized(ctx context.Context) (string, error) {
	out, err := markup.RenderBody(m.Root)
	if err != nil {
		return "", err
	}
	if rpt := state.EnvFromContext(ctx).Rpt; rpt != nil {
		rpt.StoreData(fmt.Sprintf("normalized/%s-%s", m.ID, filepath.Base(m.SrcName)), []byte(out))
	}
	return out, nil
}
