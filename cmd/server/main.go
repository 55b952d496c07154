package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"textsync/server/internal/api"
	"textsync/server/internal/bridge"
	"textsync/server/internal/presence"
	"textsync/server/internal/store"
	syncsvc "textsync/server/internal/sync"
	"textsync/server/internal/ws"
)

func main() {
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}
	defer st.Close()

	hub := ws.NewHub()
	registry := presence.NewRegistry()
	coordinator := syncsvc.New(hub, registry, st, syncsvc.DefaultConfig())

	var relayBridge *bridge.Bridge
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		log.Println("Connected to Redis")

		relayBridge = bridge.New(rdb, uuid.NewString(), coordinator.DeliverRemote)
		relayBridge.Start(ctx)
		coordinator.SetRelay(relayBridge)
	}

	router := api.New(hub, st).Router()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(coordinator, w, r)
	})

	handler := corsMiddleware(router)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		if relayBridge != nil {
			relayBridge.Stop()
		}
		st.Close()
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("📝 textsync server starting on :%s", port)
	log.Println("Endpoints:")
	log.Println("  - WebSocket:  /ws")
	log.Println("  - Health:     GET /health")
	log.Println("  - Stats:      GET /api/stats")
	log.Println("  - Documents:  GET /api/documents")

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

// openStore picks the backend: Postgres when DATABASE_URL is set, SQLite
// otherwise.
func openStore(ctx context.Context) (store.Store, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return store.NewPostgres(ctx, dsn)
	}

	dbPath := os.Getenv("TEXTSYNC_DB_PATH")
	if dbPath == "" {
		dbPath = "./data/textsync.db"
	}
	return store.NewSQLite(dbPath)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
