package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf)

	to := []mail.Address{{Name: "Anil", Address: "anil@example.com"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "hello", BodyStr: "plain body"},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"},
		&core.EmailMessage{To: to, Subject: "no content"},
	)

	require.Len(t, SentMessages, 1)
	msg, ok := LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "hello", msg.Subject)
	assert.Equal(t, "plain body", msg.TextContent)
}
