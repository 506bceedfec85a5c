package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
)

func forwardedMail() *email.OutgoingMail {
	return &email.OutgoingMail{
		From:      email.Address{Name: "Test Sender 'sender@example.com' via receiver@example.com", Email: "funnel@relay.example.com"},
		To:        email.Address{Name: "Mailbox Owner", Email: "owner@example.net"},
		ReplyTo:   email.Address{Email: "reply@abc.relay.example.com"},
		Subject:   "Test Subject",
		TextBody:  "Test text",
		HTMLBody:  "<p>Test HTML</p>",
		MessageID: "<id-1@relay.example.com>",
	}
}

// ==================== MIME Tests ====================

func TestBuildMIME_Headers(t *testing.T) {
	raw, err := BuildMIME(forwardedMail())
	require.NoError(t, err)

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Contains(t, env.GetHeader("From"), "funnel@relay.example.com")
	assert.Contains(t, env.GetHeader("From"), "via receiver@example.com")
	assert.Contains(t, env.GetHeader("To"), "owner@example.net")
	assert.Contains(t, env.GetHeader("Reply-To"), "reply@abc.relay.example.com")
	assert.Equal(t, "Test Subject", env.GetHeader("Subject"))
	assert.Equal(t, "<id-1@relay.example.com>", env.GetHeader("Message-ID"))
	assert.Equal(t, "Test text", strings.TrimSpace(env.Text))
	assert.Contains(t, env.HTML, "<p>Test HTML</p>")
}

func TestBuildMIME_NoReplyToAndDefaultSubject(t *testing.T) {
	mail := forwardedMail()
	mail.ReplyTo = email.Address{}
	mail.Subject = ""

	raw, err := BuildMIME(mail)
	require.NoError(t, err)

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Empty(t, env.GetHeader("Reply-To"))
	assert.Equal(t, defaultSubject, env.GetHeader("Subject"))
}

func TestBuildMIME_Attachments(t *testing.T) {
	mail := forwardedMail()
	mail.Attachments = []email.Attachment{
		{Filename: "notes.txt", ContentType: "text/plain", Content: []byte("hello")},
		{Filename: "blob.bin", Content: []byte{0x00, 0x01}},
	}

	raw, err := BuildMIME(mail)
	require.NoError(t, err)

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, env.Attachments, 2)
	assert.Equal(t, "notes.txt", env.Attachments[0].FileName)
	assert.Equal(t, []byte("hello"), env.Attachments[0].Content)
	assert.Equal(t, "application/octet-stream", env.Attachments[1].ContentType)
}

// ==================== SMTP Tests ====================

type capturedMail struct {
	from string
	to   []string
	data []byte
}

type captureBackend struct {
	mu   sync.Mutex
	mail []capturedMail
}

func (b *captureBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &captureSession{backend: b}, nil
}

func (b *captureBackend) received() []capturedMail {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedMail(nil), b.mail...)
}

type captureSession struct {
	backend *captureBackend
	from    string
	to      []string
}

func (s *captureSession) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *captureSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

func (s *captureSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.mu.Lock()
	s.backend.mail = append(s.backend.mail, capturedMail{from: s.from, to: s.to, data: data})
	s.backend.mu.Unlock()
	return nil
}

func (s *captureSession) Reset()        { s.from, s.to = "", nil }
func (s *captureSession) Logout() error { return nil }

func startCaptureServer(t *testing.T) (*captureBackend, string) {
	t.Helper()
	backend := &captureBackend{}
	server := smtp.NewServer(backend)
	server.Domain = "localhost"
	server.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go server.Serve(l)
	t.Cleanup(func() { server.Close() })

	return backend, l.Addr().String()
}

func TestSMTPTransport_Send(t *testing.T) {
	backend, addr := startCaptureServer(t)
	tr := NewSMTP(SMTPConfig{Addr: addr})

	err := tr.Send(context.Background(), forwardedMail())
	require.NoError(t, err)

	received := backend.received()
	require.Len(t, received, 1)
	assert.Equal(t, "funnel@relay.example.com", received[0].from)
	assert.Equal(t, []string{"owner@example.net"}, received[0].to)

	env, err := enmime.ReadEnvelope(bytes.NewReader(received[0].data))
	require.NoError(t, err)
	assert.Contains(t, env.GetHeader("Reply-To"), "reply@abc.relay.example.com")
	assert.Equal(t, "smtp", tr.Name())
}

func TestSMTPTransport_UsesPlainAuthWhenConfigured(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	tr := NewSMTP(SMTPConfig{Addr: "smtp.example.com:587", Username: "user", Password: "pass"})
	tr.sendMail = func(addr string, a sasl.Client, from string, to []string, r io.Reader) error {
		gotAddr, gotFrom, gotTo = addr, from, to
		mech, ir, err := a.Start()
		require.NoError(t, err)
		assert.Equal(t, sasl.Plain, mech)
		assert.Equal(t, "\x00user\x00pass", string(ir))
		return nil
	}

	require.NoError(t, tr.Send(context.Background(), forwardedMail()))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "funnel@relay.example.com", gotFrom)
	assert.Equal(t, []string{"owner@example.net"}, gotTo)
}

func TestSMTPTransport_CancelledContext(t *testing.T) {
	tr := NewSMTP(SMTPConfig{Addr: "127.0.0.1:1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tr.Send(ctx, forwardedMail())
	assert.ErrorIs(t, err, context.Canceled)
}

// ==================== SES Tests ====================

type mockSESClient struct {
	mock.Mock
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sesv2.SendEmailOutput), args.Error(1)
}

func TestSESTransport_SimpleContentWithReplyTo(t *testing.T) {
	client := new(mockSESClient)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return in.Content.Simple != nil &&
			*in.Content.Simple.Subject.Data == "Test Subject" &&
			*in.Content.Simple.Body.Text.Data == "Test text" &&
			*in.Content.Simple.Body.Html.Data == "<p>Test HTML</p>" &&
			len(in.ReplyToAddresses) == 1 && strings.Contains(in.ReplyToAddresses[0], "reply@abc.relay.example.com") &&
			strings.Contains(*in.FromEmailAddress, "funnel@relay.example.com") &&
			strings.Contains(in.Destination.ToAddresses[0], "owner@example.net")
	})).Return(&sesv2.SendEmailOutput{}, nil).Once()

	tr := NewSESWithClient(client)
	require.NoError(t, tr.Send(context.Background(), forwardedMail()))
	client.AssertExpectations(t)
	assert.Equal(t, "ses", tr.Name())
}

func TestSESTransport_RawWhenAttachments(t *testing.T) {
	mail := forwardedMail()
	mail.Attachments = []email.Attachment{{Filename: "a.txt", ContentType: "text/plain", Content: []byte("x")}}

	client := new(mockSESClient)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return in.Content.Raw != nil && bytes.Contains(in.Content.Raw.Data, []byte("a.txt"))
	})).Return(&sesv2.SendEmailOutput{}, nil).Once()

	require.NoError(t, NewSESWithClient(client).Send(context.Background(), mail))
	client.AssertExpectations(t)
}

func TestSESTransport_RetriesThenSucceeds(t *testing.T) {
	client := new(mockSESClient)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled")).Twice()
	client.On("SendEmail", mock.Anything, mock.Anything).Return(&sesv2.SendEmailOutput{}, nil).Once()

	tr := NewSESWithClient(client)
	tr.baseDelay = time.Millisecond

	require.NoError(t, tr.Send(context.Background(), forwardedMail()))
	client.AssertNumberOfCalls(t, "SendEmail", 3)
}

func TestSESTransport_GivesUp(t *testing.T) {
	client := new(mockSESClient)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("rejected"))

	tr := NewSESWithClient(client)
	tr.baseDelay = time.Millisecond

	err := tr.Send(context.Background(), forwardedMail())
	assert.ErrorContains(t, err, "rejected")
	client.AssertNumberOfCalls(t, "SendEmail", sesMaxRetries+1)
}

// ==================== AMQP Tests ====================

type recordingPublisher struct {
	mu        sync.Mutex
	key       string
	published []amqp.Publishing
	err       error
}

func (p *recordingPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.key = key
	p.published = append(p.published, msg)
	return nil
}

func TestAMQPTransport_PublishesJSON(t *testing.T) {
	pub := &recordingPublisher{}
	tr := NewAMQPWithPublisher("outgoing-mail", pub)

	require.NoError(t, tr.Send(context.Background(), forwardedMail()))

	require.Len(t, pub.published, 1)
	msg := pub.published[0]
	assert.Equal(t, "outgoing-mail", pub.key)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "<id-1@relay.example.com>", msg.MessageId)

	var decoded email.OutgoingMail
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, *forwardedMail(), decoded)
	assert.Equal(t, "amqp", tr.Name())
	assert.NoError(t, tr.Close())
}

func TestAMQPTransport_PublishError(t *testing.T) {
	tr := NewAMQPWithPublisher("outgoing-mail", &recordingPublisher{err: amqp.ErrClosed})

	err := tr.Send(context.Background(), forwardedMail())
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

// ==================== Log / factory Tests ====================

func TestLogTransport_Send(t *testing.T) {
	var buf bytes.Buffer
	tr := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, tr.Send(context.Background(), forwardedMail()))
	assert.Contains(t, buf.String(), `"message_id":"<id-1@relay.example.com>"`)
	assert.NotContains(t, buf.String(), "Test text")
}

func TestNew_SelectsTransport(t *testing.T) {
	tr, err := New(context.Background(), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "log", tr.Name())

	tr, err = New(context.Background(), Config{Kind: "smtp", SMTP: SMTPConfig{Addr: "localhost:25"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "smtp", tr.Name())

	_, err = New(context.Background(), Config{Kind: "pigeon"}, nil)
	assert.Error(t, err)
}
