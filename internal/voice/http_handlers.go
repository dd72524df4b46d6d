package voice

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"venue-outreach/internal/outreach"
	"venue-outreach/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SignalWebhookHandler converts platform webhooks to internal signals and
// hands them to the correlator.
//
// No business logic here. The response is a fixed acknowledgment no matter
// what correlation decided: the platform must not retry-storm on an
// ambiguous signal, and duplicates are already absorbed downstream.
// Ambiguous/no-match cases are audited inside the correlator for operator
// follow-up.

type SignalWebhookHandler struct {
	Correlator *outreach.Correlator

	// Secret, when set, must match the platform's x-vapi-secret header.
	Secret string
}

func (h SignalWebhookHandler) HandleSignal(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Correlator == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "correlator not configured"})
		return
	}

	if h.Secret != "" {
		got := c.GetHeader("x-vapi-secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	msg, raw, err := ParseWebhook(c.Request)
	if err != nil {
		log.Warn("webhook parse failed", "err", err)
		// Malformed payloads are not retriable; still acknowledge.
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	sig, err := msg.ToSignal(raw)
	if err != nil {
		if !errors.Is(err, ErrUnsupportedMessage) {
			log.Warn("webhook signal conversion failed", "type", msg.Message.Type, "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	out, err := h.Correlator.Correlate(c.Request.Context(), sig)
	switch {
	case errors.Is(err, outreach.ErrNoMatch):
		log.Warn("signal matched no open attempt", "external_ref", sig.ExternalRef, "channel", sig.ContactChannel)
	case errors.Is(err, outreach.ErrAmbiguousSignal):
		log.Warn("ambiguous signal left for manual reconciliation", "channel", sig.ContactChannel)
	case err != nil:
		log.Error("signal processing failed", "err", err)
	case out.Duplicate:
		log.Debug("duplicate signal absorbed", "attempt_id", out.AttemptID)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
