package tui

import (
	"context"
	"errors"
	"net"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/basket/go-craft/internal/apiclient"
	"github.com/basket/go-craft/internal/workbook"
)

// humanError turns a quest completion failure into one line for the board.
// Server messages are shown as sent; anything else keeps the innermost
// segment of the wrapped chain, capitalized.
func humanError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *apiclient.APIError
	var netErr net.Error
	switch {
	case errors.Is(err, workbook.ErrUnknownQuest), apiclient.IsNotFound(err):
		return "クエストが見つかりません"
	case errors.Is(err, context.DeadlineExceeded):
		return "サーバーの応答がありません"
	case errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "":
		return apiErr.Message
	case errors.As(err, &netErr):
		return "サーバーに接続できません"
	}
	msg := err.Error()
	idx := strings.LastIndex(msg, ": ")
	if idx == -1 || idx+2 >= len(msg) {
		return msg
	}
	inner := msg[idx+2:]
	r, size := utf8.DecodeRuneInString(inner)
	return string(unicode.ToUpper(r)) + inner[size:]
}
