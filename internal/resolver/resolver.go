// Package resolver turns a free-form query (serialized chat ID, phone
// digits, or a substring of a display name) into at most one chat.
package resolver

import (
	"context"
	"strings"

	"github.com/edgard/wagate/internal/whatsapp"
)

// Resolve fetches a fresh chat snapshot from the client and matches query
// against it. The snapshot is never cached.
func Resolve(ctx context.Context, client whatsapp.Client, query string) (whatsapp.Chat, bool, error) {
	chats, err := client.Chats(ctx)
	if err != nil {
		return whatsapp.Chat{}, false, err
	}

	chat, ok := Match(chats, query)
	return chat, ok, nil
}

// Match applies the resolution precedence to a chat snapshot, short-circuiting
// on the first hit:
//
//  1. exact match against a chat's serialized identifier
//  2. query stripped to digits against a direct chat's phone number
//  3. case-insensitive substring of the display name, first in list order
//
// An empty or whitespace-only query never matches. List order is whatever the
// client returned; no sorting is applied.
func Match(chats []whatsapp.Chat, query string) (whatsapp.Chat, bool) {
	q := strings.TrimSpace(query)
	if q == "" {
		return whatsapp.Chat{}, false
	}

	for _, c := range chats {
		if c.ID == q {
			return c, true
		}
	}

	if digits := stripNonDigits(q); digits != "" {
		for _, c := range chats {
			if !c.IsGroup && c.Phone == digits {
				return c, true
			}
		}
	}

	qLower := strings.ToLower(q)
	for _, c := range chats {
		if strings.Contains(strings.ToLower(c.Name), qLower) {
			return c, true
		}
	}

	return whatsapp.Chat{}, false
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
