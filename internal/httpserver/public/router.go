package public

import (
	"github.com/gofiber/fiber/v2"

	"github.com/voicepartnerai/platform/internal/app"
	"github.com/voicepartnerai/platform/internal/keys"
)

// Register wires up the API-key authenticated public surface plus the
// carrier webhook endpoint.
func Register(router *fiber.App, container *app.Container) {
	if router == nil || container == nil {
		return
	}

	webhooks := &webhooksHandler{container: container}
	router.Post("/webhooks/telephony", webhooks.telephony)

	group := router.Group("/v1", apiKeyAuth(container))

	callsH := &callsHandler{container: container}
	group.Post("/calls", requireScope(container, keys.ScopeCalls), callsH.start)
	group.Get("/calls/:callSID", requireScope(container, keys.ScopeRead), callsH.get)
	group.Post("/calls/:callSID/end", requireScope(container, keys.ScopeCalls), callsH.end)

	usageH := &usageHandler{container: container}
	group.Get("/usage", requireScope(container, keys.ScopeRead), usageH.stats)

	speechH := &speechHandler{}
	if container.Speech != nil {
		speechH.tts = container.Speech
	}
	group.Post("/speech", requireScope(container, keys.ScopeWrite), speechH.synthesize)
}
