package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

// BearerSubprotocol is the Sec-WebSocket-Protocol value a browser offers
// alongside its access token, since it cannot set an Authorization header.
const BearerSubprotocol = "bearer"

// Serve upgrades the request and streams spaceID's activity until the
// connection closes. Callers must have authorized the subscription.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, spaceID uuid.UUID) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		Subprotocols:   []string{BearerSubprotocol},
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket accept", "space_id", spaceID, "error", err)
		return
	}
	defer conn.CloseNow()

	NewClient(h, conn, spaceID).Run(r.Context())
}
