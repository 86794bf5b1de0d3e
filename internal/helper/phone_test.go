package helper

import (
	"testing"

	"go.mau.fi/whatsmeow/types"
)

func TestFormatPhoneNumber(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"6285148107612", "6285148107612", false},
		{"085148107612", "6285148107612", false}, // leading zero gets country code
		{"+62 851-4810-7612", "6285148107612", false},
		{"(0851) 4810 7612", "6285148107612", false},
		{"abc123", "", true},
		{"123", "", true},                  // too short
		{"1234567890123456789", "", true}, // too long
	}
	for _, tc := range cases {
		jid, err := FormatPhoneNumber(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("FormatPhoneNumber(%q): expected error, got %s", tc.in, jid)
			}
			continue
		}
		if err != nil {
			t.Errorf("FormatPhoneNumber(%q): %v", tc.in, err)
			continue
		}
		if jid.User != tc.want || jid.Server != types.DefaultUserServer {
			t.Errorf("FormatPhoneNumber(%q) = %s, want %s@%s", tc.in, jid, tc.want, types.DefaultUserServer)
		}
	}
}

func TestParseChatJID(t *testing.T) {
	jid, err := ParseChatJID("12345678901@s.whatsapp.net")
	if err != nil || jid.User != "12345678901" {
		t.Fatalf("full JID: %v %v", jid, err)
	}

	jid, err = ParseChatJID("120363041234567890@g.us")
	if err != nil || jid.Server != types.GroupServer {
		t.Fatalf("group JID: %v %v", jid, err)
	}

	jid, err = ParseChatJID("6285148107612")
	if err != nil || jid.User != "6285148107612" {
		t.Fatalf("bare number: %v %v", jid, err)
	}

	if _, err := ParseChatJID("not a jid"); err == nil {
		t.Fatal("expected error for garbage input")
	}
}

func TestExtractPhoneFromJID(t *testing.T) {
	if got := ExtractPhoneFromJID("6285148107612:43@s.whatsapp.net"); got != "6285148107612" {
		t.Fatalf("got %s", got)
	}
	if got := ExtractPhoneFromJID("6285148107612@s.whatsapp.net"); got != "6285148107612" {
		t.Fatalf("got %s", got)
	}
}
