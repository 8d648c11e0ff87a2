package document

import (
	"context"
	"strings"
)

// PlainTextSource decodes bytes as UTF-8, dropping invalid sequences and a
// leading byte-order mark.
type PlainTextSource struct{}

func (PlainTextSource) Kind() Kind { return KindPlainText }

func (PlainTextSource) Text(_ context.Context, data []byte) (string, error) {
	text := strings.ToValidUTF8(string(data), "")
	return strings.TrimPrefix(text, "\ufeff"), nil
}
