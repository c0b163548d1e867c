package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nwells/parley/internal/auth"
	"github.com/nwells/parley/internal/config"
	"github.com/nwells/parley/internal/hub"
	"github.com/nwells/parley/internal/logging"
	"github.com/nwells/parley/internal/message"
	"github.com/nwells/parley/internal/presence"
	"github.com/nwells/parley/internal/pubsub"
	"github.com/nwells/parley/internal/room"
	"github.com/nwells/parley/internal/session"
)

// Server wires the coordination components together and hosts the HTTP
// surface: the auth endpoints and the websocket upgrade.
type Server struct {
	E   *echo.Echo
	Cfg *config.Config

	bus           *pubsub.Bus
	hub           *hub.Hub
	accounts      *auth.Store
	tokens        *auth.TokenManager
	authenticator auth.Authenticator
	presence      *presence.Registry
	rooms         *room.Directory
	messages      *message.Service
	typing        *session.TypingRelay
	dispatcher    *session.Dispatcher
	authHandler   *AuthHandler
}

// New creates a fully wired server instance.
func New() *Server {
	logging.New()
	cfg := config.New()

	bus := pubsub.NewBus()
	h := hub.New()

	accounts := auth.NewStore(auth.NewPasswordHasher())
	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)

	presenceReg := presence.NewRegistry(bus)
	rooms := room.NewDirectory(bus)
	messages := message.NewService(rooms, message.NewLog(), bus)
	typing := session.NewTypingRelay(bus)
	dispatcher := session.NewDispatcher(bus, rooms, h)

	// The default room exists from startup so the snapshot always has it.
	rooms.Ensure(cfg.DefaultRoomID, cfg.DefaultRoomName)

	if err := dispatcher.Start(context.Background()); err != nil {
		slog.Error("Failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	return &Server{
		E:             e,
		Cfg:           cfg,
		bus:           bus,
		hub:           h,
		accounts:      accounts,
		tokens:        tokens,
		authenticator: tokens,
		presence:      presenceReg,
		rooms:         rooms,
		messages:      messages,
		typing:        typing,
		dispatcher:    dispatcher,
		authHandler:   NewAuthHandler(accounts, tokens),
	}
}

// sessionDeps builds the dependency bundle handed to each new session.
func (s *Server) sessionDeps() session.Deps {
	return session.Deps{
		Presence:        s.presence,
		Rooms:           s.rooms,
		Messages:        s.messages,
		Typing:          s.typing,
		Hub:             s.hub,
		DefaultRoomID:   s.Cfg.DefaultRoomID,
		DefaultRoomName: s.Cfg.DefaultRoomName,
	}
}
