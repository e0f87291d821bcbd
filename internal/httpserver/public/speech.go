package public

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/httpserver/httputil"
)

// OpenAI rejects longer inputs; checking here keeps the refusal local.
const maxSynthesisChars = 4096

// synthesizer is the slice of the speech provider the endpoint needs.
type synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type speechHandler struct {
	tts synthesizer
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// synthesize renders text as audio through the configured speech provider.
func (h *speechHandler) synthesize(c *fiber.Ctx) error {
	if h.tts == nil {
		return httputil.WriteError(c, fiber.StatusServiceUnavailable, "speech synthesis is not configured")
	}

	var req synthesizeRequest
	if err := c.BodyParser(&req); err != nil {
		return httputil.WriteError(c, fiber.StatusBadRequest, "invalid request body")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return httputil.WriteError(c, fiber.StatusBadRequest, "text is required")
	}
	if len(text) > maxSynthesisChars {
		return httputil.WriteError(c, fiber.StatusBadRequest, "text exceeds 4096 characters")
	}

	audio, err := h.tts.Synthesize(userContext(c), text)
	if err != nil {
		return httputil.WriteError(c, fiber.StatusBadGateway, "speech synthesis failed")
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	return c.Send(audio)
}
