package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAccepts(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	require.True(t, VerifySignature("s3cret", body, sign("s3cret", body)))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"action":"opened"}`)
	require.False(t, VerifySignature("s3cret", body, sign("other", body)))
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	sig := sign("s3cret", []byte(`{"action":"opened"}`))
	require.False(t, VerifySignature("s3cret", []byte(`{"action":"closed"}`), sig))
}

func TestVerifySignatureRejectsEmptySecret(t *testing.T) {
	body := []byte(`{}`)
	require.False(t, VerifySignature("", body, sign("whatever", body)))
}

func TestVerifySignatureRejectsMissingPrefix(t *testing.T) {
	require.False(t, VerifySignature("s3cret", []byte("{}"), "deadbeef"))
}

func TestClassifyPing(t *testing.T) {
	ev, err := Classify("ping", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "ping", ev.Type)
	require.Equal(t, "pong", ev.Reply)
}

func TestClassifyPullRequestOpened(t *testing.T) {
	body := []byte(`{"action":"opened","number":42,"repository":{"full_name":"acme/widgets"}}`)
	ev, err := Classify("pull_request", body)
	require.NoError(t, err)
	require.Equal(t, "pull_request", ev.Type)
	require.Equal(t, 42, ev.PRNumber)
	require.Equal(t, "acme/widgets", ev.Repo)
}

func TestClassifyPullRequestIrrelevantAction(t *testing.T) {
	body := []byte(`{"action":"labeled","number":1,"repository":{"full_name":"acme/widgets"}}`)
	ev, err := Classify("pull_request", body)
	require.NoError(t, err)
	require.Equal(t, "ignored", ev.Type)
}

func TestClassifyUnknownEvent(t *testing.T) {
	ev, err := Classify("star", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "ignored", ev.Type)
	require.Equal(t, 200, ev.ReplyCode)
}

func TestClassifyInstallationSuspend(t *testing.T) {
	ev, err := Classify("installation", []byte(`{"action":"suspend"}`))
	require.NoError(t, err)
	require.Equal(t, "installation", ev.Type)
	require.Equal(t, "suspend", ev.Action)
}
