// Package ws implements the real-time presence layer of the portal: live
// WebSocket sessions, ephemeral room membership, typing indicators and the
// background sweep that expires stale state.
//
// # Invariants
//
//   - At most one live session per user id. Connecting again closes the old
//     socket with 1000 "Session replaced" and tears the old session down first.
//   - A room exists only while it has members; member sets and each session's
//     room set always agree.
//   - Typing entries older than the typing timeout are cleared, with a
//     typing_indicator(is_typing=false) broadcast, by the next sweep.
//
// # Basic Usage
//
//	manager, err := ws.NewManager(
//	    ws.WithLogger(zapLogger),
//	    ws.WithCheckOriginWhitelist([]string{"https://portal.example.com"}),
//	)
//	if err != nil {
//	    return err
//	}
//
//	// Register extra inbound message types before Run
//	ws.Handle0[SendMessage](manager.Router(), "send_message",
//	    func(c *ws.Client, req *SendMessage) error {
//	        manager.BroadcastToRoom(req.RoomID, ws.NewEnvelope("new_message", req), "")
//	        return nil
//	    })
//
//	_ = manager.Run()
//	defer manager.Shutdown(ctx)
//
//	r.GET("/ws", func(c *gin.Context) {
//	    if err := manager.HandleUpgrade(c.Writer, c.Request, userID, username); err != nil {
//	        // ErrTooManyConnections: respond 503
//	    }
//	})
//
// Sends are single non-blocking enqueues onto the connection's write queue; a
// failed delivery, broadcast or direct, tears the recipient's session down.
// Room capacity returned by the RoomGuard is checked in the same critical
// section that adds the member.
package ws
