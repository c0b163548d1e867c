package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/nwells/parley/internal/hub"
	"github.com/nwells/parley/internal/session"
)

const writeTimeout = 10 * time.Second

// ServeWS authenticates and upgrades a websocket connection, then runs the
// session until the connection goes away. The credential is checked before
// the upgrade: a refused connection registers no state anywhere.
func (s *Server) ServeWS(c echo.Context) error {
	identity, err := s.authenticator.Authenticate(c.Request().Context(), bearerToken(c))
	if err != nil {
		slog.Info("Refusing websocket connection", "error", err, "remote", c.RealIP())
		return c.String(http.StatusUnauthorized, "authentication required")
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true, // In production, check origin.
	})
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return err
	}

	connID := uuid.NewString()
	handle := hub.NewConn(connID, identity.UserID)
	coordinator := session.NewCoordinator(s.sessionDeps(), identity, connID)

	// Hub registration precedes Open so the session's own presence broadcast
	// reaches this connection.
	s.hub.Add(handle)
	if err := coordinator.Open(context.Background()); err != nil {
		slog.Error("Failed to open session", "error", err, "conn_id", connID)
		s.hub.Remove(connID)
		conn.Close(websocket.StatusInternalError, "session open failed")
		return nil
	}

	go writePump(conn, handle)
	s.readPump(conn, handle, coordinator)
	return nil
}

// bearerToken extracts the credential from the Authorization header, falling
// back to the token query parameter for browser websocket dials.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return c.QueryParam("token")
}

// readPump pumps frames from the websocket into the session until the
// connection goes away, then tears the session down. Inbound frames are
// handled synchronously, preserving the connection's own event order.
func (s *Server) readPump(conn *websocket.Conn, handle *hub.Conn, coordinator *session.Coordinator) {
	defer func() {
		coordinator.Close(context.Background())
		s.hub.Remove(handle.ID)
		conn.Close(websocket.StatusNormalClosure, "Client disconnected")
	}()

	for {
		_, raw, err := conn.Read(context.Background())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				slog.Info("WebSocket closed normally by client", "conn_id", handle.ID)
			} else if err != io.EOF {
				slog.Error("WebSocket read error", "conn_id", handle.ID, "error", err)
			}
			return
		}
		coordinator.Handle(context.Background(), raw)
	}
}

// writePump pumps payloads from the hub's outbound queue to the websocket.
func writePump(conn *websocket.Conn, handle *hub.Conn) {
	defer conn.Close(websocket.StatusNormalClosure, "Server-side cleanup")

	for payload := range handle.Outbound() {
		if payload == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			slog.Error("WebSocket write error", "conn_id", handle.ID, "error", err)
			return
		}
	}
}
