package helper

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

var (
	allowedChars = regexp.MustCompile(`^[\d\s\+\-\(\)]+$`)
	nonDigits    = regexp.MustCompile(`[^\d]`)
)

// FormatPhoneNumber converts a raw phone number into a WhatsApp user JID.
// Numbers starting with 0 get the default country code (DEFAULT_COUNTRY_CODE,
// fallback 62) prepended.
func FormatPhoneNumber(phone string) (types.JID, error) {
	if !allowedChars.MatchString(phone) {
		return types.JID{}, fmt.Errorf("invalid phone number format: contains invalid characters")
	}

	cleaned := nonDigits.ReplaceAllString(phone, "")
	if len(cleaned) < 8 {
		return types.JID{}, fmt.Errorf("phone number too short")
	}

	if strings.HasPrefix(cleaned, "0") {
		cleaned = defaultCountryCode() + cleaned[1:]
	}

	if len(cleaned) > 15 {
		return types.JID{}, fmt.Errorf("invalid phone number length")
	}

	return types.JID{
		User:   cleaned,
		Server: types.DefaultUserServer,
	}, nil
}

func defaultCountryCode() string {
	if cc := os.Getenv("DEFAULT_COUNTRY_CODE"); cc != "" {
		return cc
	}
	return "62"
}

// ParseChatJID accepts either a full JID ("xxx@s.whatsapp.net", "yyy@g.us")
// or a bare phone number and returns the target JID.
func ParseChatJID(id string) (types.JID, error) {
	if strings.Contains(id, "@") {
		jid, err := types.ParseJID(id)
		if err != nil {
			return types.JID{}, fmt.Errorf("invalid JID %q: %w", id, err)
		}
		return jid, nil
	}
	return FormatPhoneNumber(id)
}

func ExtractPhoneFromJID(jid string) string {
	// "6285148107612:43@s.whatsapp.net" -> "6285148107612"
	beforeAt := strings.SplitN(jid, "@", 2)[0]
	return strings.SplitN(beforeAt, ":", 2)[0]
}
