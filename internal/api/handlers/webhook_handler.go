package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-mailfunnel/internal/api/response"
	"github.com/welldanyogia/webrana-mailfunnel/internal/email"
	"github.com/welldanyogia/webrana-mailfunnel/internal/relay"
	"github.com/welldanyogia/webrana-mailfunnel/internal/webhook"
)

// Pipeline processes one canonical envelope
type Pipeline interface {
	Process(ctx context.Context, env *email.Envelope) (*relay.Result, error)
}

// WebhookHandler receives provider inbound-parse webhooks and hands the
// resulting envelopes to the relay pipelines
type WebhookHandler struct {
	inbound  Pipeline
	outbound Pipeline
	logger   *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(inbound, outbound Pipeline, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		inbound:  inbound,
		outbound: outbound,
		logger:   logger,
	}
}

// PostmarkInbound handles POST /postmark/inbound
func (h *WebhookHandler) PostmarkInbound(c echo.Context) error {
	return h.postmark(c, h.inbound)
}

// PostmarkOutbound handles POST /postmark/outbound
func (h *WebhookHandler) PostmarkOutbound(c echo.Context) error {
	return h.postmark(c, h.outbound)
}

// SendgridInbound handles POST /sendgrid/inbound
func (h *WebhookHandler) SendgridInbound(c echo.Context) error {
	return h.sendgrid(c, h.inbound)
}

// SendgridOutbound handles POST /sendgrid/outbound
func (h *WebhookHandler) SendgridOutbound(c echo.Context) error {
	return h.sendgrid(c, h.outbound)
}

func (h *WebhookHandler) postmark(c echo.Context, p Pipeline) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return response.BadRequest(c, "failed to read request body")
	}

	env, err := webhook.ParsePostmark(body)
	if err != nil {
		return h.invalidPayload(c, webhook.ProviderPostmark, err)
	}
	return h.process(c, p, env)
}

func (h *WebhookHandler) sendgrid(c echo.Context, p Pipeline) error {
	var payload webhook.SendgridPayload
	if err := c.Bind(&payload); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return response.BadRequest(c, "invalid multipart form")
		}
		attachments, err := readAttachments(form)
		if err != nil {
			return response.BadRequest(c, "failed to read attachments")
		}
		payload.Attachments = attachments
	}

	env, err := payload.ToEnvelope()
	if err != nil {
		return h.invalidPayload(c, webhook.ProviderSendgrid, err)
	}
	return h.process(c, p, env)
}

func (h *WebhookHandler) process(c echo.Context, p Pipeline, env *email.Envelope) error {
	h.logger.Info("webhook received", env.LogAttrs()...)

	result, err := p.Process(c.Request().Context(), env)
	if err != nil {
		if errors.Is(err, relay.ErrInvalidEnvelope) {
			return response.BadRequest(c, "invalid envelope")
		}
		h.logger.Error("failed to process webhook",
			"provider", env.Provider,
			"to", env.ToEmail,
			"error", err,
		)
		return response.InternalError(c, "failed to process message")
	}

	return response.Success(c, result)
}

func (h *WebhookHandler) invalidPayload(c echo.Context, provider string, err error) error {
	h.logger.Warn("invalid webhook payload", "provider", provider, "error", err)
	return response.BadRequest(c, "invalid webhook payload")
}

// readAttachments reads every uploaded file of a multipart form
func readAttachments(form *multipart.Form) ([]email.Attachment, error) {
	var attachments []email.Attachment
	for _, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			attachments = append(attachments, email.Attachment{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(echo.HeaderContentType),
				Content:     content,
			})
		}
	}
	return attachments, nil
}
