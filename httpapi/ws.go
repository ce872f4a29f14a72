package httpapi

import (
	"context"
	"net/http"
	"time"

	"dispatch-chat/domain"
	"dispatch-chat/errors"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

// subscribeRoom establishes the live message stream for a room. The client
// first receives every stored message in ascending order, then each newly
// appended message as it is written. Delivery is at-least-once; clients
// de-duplicate by message id. When the stream drops, the client
// resubscribes, and can fall back to the list endpoint meanwhile.
//
// This handler blocks until the client disconnects or delivery fails.
func (a *API) subscribeRoom(w http.ResponseWriter, r *http.Request) {
	roomID, err := a.ownedRoom(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("Websocket upgrade failed", "room", roomID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Messages arrive on a single pump goroutine, so the connection only
	// ever has one writer.
	subscription, err := a.chats.Subscribe(ctx, roomID, func(message domain.Message) {
		if err := conn.WriteJSON(toMessageResponse(message)); err != nil {
			a.log.Warn("Websocket delivery failed, dropping subscription",
				"room", roomID, "error", err)
			cancel()
			_ = conn.Close()
		}
	})
	if err != nil {
		a.closeWith(conn, websocket.CloseInternalServerErr, errors.ErrSubscriptionLost.Error())
		return
	}
	defer subscription.Close()

	// A subscriber that fell behind gets a close frame telling it to
	// resubscribe; history stays available through the list endpoint.
	go func() {
		<-subscription.Done()
		if errors.Is(subscription.Err(), errors.ErrSubscriptionLost) {
			a.closeWith(conn, websocket.CloseTryAgainLater, errors.ErrSubscriptionLost.Error())
			_ = conn.Close()
		}
	}()

	// Block on the read side to notice the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			a.log.Debug("Subscriber disconnected", "room", roomID)
			return
		}
	}
}

func (a *API) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(closeGracePeriod)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
}
