package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"tilenet/server/config"
	"tilenet/server/game"
	"tilenet/server/handlers"
	"tilenet/server/journal"
	"tilenet/server/messages"
	"tilenet/server/world"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Clients connect from file:// and arbitrary dev origins.
		return true
	},
}

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	host := flag.String("host", "", "override listen host")
	port := flag.Int("port", 0, "override listen port")
	imagesDir := flag.String("images", "", "override symbol images directory")
	journalDir := flag.String("journal", "", "override journal directory")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *imagesDir != "" {
		cfg.ImagesDir = *imagesDir
	}
	if *journalDir != "" {
		cfg.JournalDir = *journalDir
	}
	if *debug {
		cfg.Debug = true
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	rec := journal.New(cfg.JournalDir, "tilenet")
	defer rec.Close()

	w := world.New()
	srv := handlers.NewServer(w, cfg, rec)

	home := w.CreateMatrix(messages.Attrs{
		Name: messages.String("Home"),
		Text: messages.String("Welcome! Click a token to join a game."),
		X:    messages.Int(4),
		Y:    messages.Int(4),
	})
	srv.SetHomeMatrix(home.ObjID)

	pp := w.CreateMatrix(messages.Attrs{
		Name: messages.String("PairPanicking"),
		Text: messages.String("Match the pairs!"),
		X:    messages.Int(9),
		Y:    messages.Int(8),
	})

	lobby := game.NewHome(w, home.ObjID, srv, rec)
	w.RegisterPlugin(home.ObjID, lobby)

	match := game.NewPairPanicking(w, pp.ObjID, srv, cfg.ImagesDir, rec)
	w.RegisterPlugin(pp.ObjID, match)

	if err := lobby.Initialize(srv.Sessions()); err != nil {
		log.Fatalf("home plugin: %v", err)
	}
	if err := match.Initialize(srv.Sessions()); err != nil {
		log.Fatalf("pairpanicking plugin: %v", err)
	}
	lobby.AddDestination("PairPanicking", 1, 1, pp.ObjID)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(rw http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(rw, r, nil)
		if err != nil {
			log.Printf("upgrade from %s: %v", r.RemoteAddr, err)
			return
		}
		srv.HandleConnection(wsConn)
	})

	httpSrv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("%s listening on %s", cfg.ServerName, cfg.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
