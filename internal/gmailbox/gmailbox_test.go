package gmailbox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func encPart(s string) *gmail.MessagePartBody {
	return &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(s))}
}

func TestDecodeBody(t *testing.T) {
	t.Run("single part plain", func(t *testing.T) {
		payload := &gmail.MessagePart{MimeType: "text/plain", Body: encPart("hello")}
		assert.Equal(t, "hello", decodeBody(payload))
	})

	t.Run("plain preferred over html", func(t *testing.T) {
		payload := &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: encPart("<p>html</p>")},
				{MimeType: "text/plain", Body: encPart("plain")},
			},
		}
		assert.Equal(t, "plain", decodeBody(payload))
	})

	t.Run("html fallback", func(t *testing.T) {
		payload := &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: encPart("<p>html</p>")},
			},
		}
		assert.Equal(t, "<p>html</p>", decodeBody(payload))
	})

	t.Run("nested multipart", func(t *testing.T) {
		payload := &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{MimeType: "application/pdf"},
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/plain", Body: encPart("inner")},
					},
				},
			},
		}
		assert.Equal(t, "inner", decodeBody(payload))
	})

	t.Run("empty payload", func(t *testing.T) {
		assert.Equal(t, "", decodeBody(nil))
		assert.Equal(t, "", decodeBody(&gmail.MessagePart{MimeType: "text/plain"}))
	})
}

func TestCutAdditionalInfo(t *testing.T) {
	body := "Nome: Ada\nRuolo: Backend\nInformazioni aggiuntive:\n  I built compilers.  \n"
	got, ok := cutAdditionalInfo(body)
	assert.True(t, ok)
	assert.Equal(t, "I built compilers.", got)

	_, ok = cutAdditionalInfo("no marker here")
	assert.False(t, ok)
}

func TestExtractAddress(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Ada Lovelace <Ada@Example.com>", "ada@example.com"},
		{"<b@example.com>", "b@example.com"},
		{"  plain@example.com  ", "plain@example.com"},
		{"Плэйн <utf8@example.com>", "utf8@example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractAddress(tt.in), tt.in)
	}
}

func TestHeaderValue(t *testing.T) {
	payload := &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
		{Name: "subject", Value: "RECRUITMENT Candidatura"},
		{Name: "From", Value: "a <a@b>"},
	}}
	assert.Equal(t, "RECRUITMENT Candidatura", headerValue(payload, "Subject"))
	assert.Equal(t, "", headerValue(nil, "Subject"))
}
