package mailbox

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestDecodeMessage_MultipartAlternative(t *testing.T) {
	m := &gmail.Message{
		Id:           "msg-1",
		InternalDate: 1733427300000,
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "noreply@uber.com"},
				{Name: "Subject", Value: "Your Thursday trip with Uber"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Body:     &gmail.MessagePartBody{Data: b64("plain body")},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: b64("<p>html body</p>")},
				},
			},
		},
	}

	msg := decodeMessage(m)
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, "Your Thursday trip with Uber", msg.Subject)
	assert.Equal(t, time.UnixMilli(1733427300000), msg.Received)
	assert.Equal(t, "plain body", msg.PlainBody)
	assert.Equal(t, "<p>html body</p>", msg.HTMLBody)
}

func TestDecodeMessage_NestedMultipart(t *testing.T) {
	m := &gmail.Message{
		Id: "msg-2",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{
							MimeType: "text/plain",
							Body:     &gmail.MessagePartBody{Data: b64("nested plain")},
						},
					},
				},
				{
					MimeType: "application/pdf",
					Body:     &gmail.MessagePartBody{Data: b64("binary attachment")},
				},
			},
		},
	}

	msg := decodeMessage(m)
	assert.Equal(t, "nested plain", msg.PlainBody)
	assert.Empty(t, msg.HTMLBody)
}

func TestDecodeMessage_NoPayload(t *testing.T) {
	msg := decodeMessage(&gmail.Message{Id: "msg-3"})
	assert.Equal(t, "msg-3", msg.ID)
	assert.Empty(t, msg.Subject)
	assert.Empty(t, msg.PlainBody)
}

func TestPartBody_TopLevelSinglePart(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "text/plain",
		Body:     &gmail.MessagePartBody{Data: b64("single part")},
	}
	assert.Equal(t, "single part", partBody(payload, "text/plain"))
	assert.Empty(t, partBody(payload, "text/html"))
}
