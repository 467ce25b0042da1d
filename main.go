package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"studyhall/handlers/api/chat"
	"studyhall/handlers/api/documents"
	"studyhall/handlers/api/notes"
	"studyhall/handlers/api/rooms"
	"studyhall/handlers/auth"
	authMiddleware "studyhall/middleware"
	"studyhall/relay"
	"studyhall/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(store stores.Store, registry *relay.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api/v1", func(r chi.Router) {
		// Routes for notes and chat, protected by JWT auth
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Route("/notes", func(r chi.Router) {
				r.Get("/", notes.HandleList(store))
				r.Post("/", notes.HandleCreate(store))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", notes.HandleGet(store))
					r.Put("/", notes.HandleSave(store))
					r.Delete("/", notes.HandleDelete(store))
				})
			})
			r.Route("/chat", func(r chi.Router) {
				r.Post("/completions", chat.HandleChatCompletion())
			})
		})

		// Read-only surfaces for collaborative sessions
		r.Get("/documents/{id}", documents.HandleGet(store))
		r.Get("/rooms/{roomId}", rooms.HandleGetStatus(registry))
	})

	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleLogin)
		r.Get("/callback", auth.HandleCallback)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

func waitForShutdown(io *socketio.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-signalC
		close(exit)
	}()

	<-exit
	logrus.Info("Shutting down...")
	io.Close(nil)
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":4000", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	chat.Init()
	store := stores.GetStore()

	registry := relay.NewRegistry()
	io, _ := relay.SetupSocketIO(registry, store)

	r := setupRouter(store, registry)
	r.Mount("/socket.io/", io.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(io)
}
