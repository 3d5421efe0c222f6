package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"collabdocs-server/core"
	"collabdocs-server/handlers/api/documents"
	"collabdocs-server/handlers/websocket"
	"collabdocs-server/middleware"
	"collabdocs-server/stores"
)

type roomEntry struct {
	ID         string `json:"id"`
	Users      int    `json:"users"`
	LastActive *int64 `json:"lastActive,omitempty"`
}

func setupRouter(store stores.Store, hub *websocket.Hub, auth core.Authorizer) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-User-ID", "X-User-Email", "X-User-Name"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.Identity)

	r.Route("/api/documents", func(r chi.Router) {
		r.Post("/", documents.HandleCreate(store))
		r.Get("/", documents.HandleList(store))
		r.Route("/{docId}", func(r chi.Router) {
			r.Get("/", documents.HandleGet(store))
			r.Put("/", documents.HandleSave(store, auth))
			r.Get("/collaborators", documents.HandleGetCollaborators(store))
			r.Post("/collaborators", documents.HandleInvite(store))
		})
	})

	r.Get("/api/rooms", handleListRooms(store, hub))

	r.Get("/ws", hub.ServeHTTP)

	return r
}

// handleListRooms merges the hub's live member counts with the store's
// last-active timestamps so idle-but-recent rooms still show up.
func handleListRooms(activity core.RoomActivity, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomMap := make(map[string]*roomEntry)
		for id, count := range hub.ActiveRooms() {
			roomMap[id] = &roomEntry{ID: id, Users: count}
		}

		if activity != nil {
			storedRooms, err := activity.ListRooms(r.Context())
			if err != nil {
				logrus.WithError(err).Warn("failed to list rooms from store")
			} else {
				for _, room := range storedRooms {
					entry, exists := roomMap[room.ID]
					if !exists {
						entry = &roomEntry{ID: room.ID}
						roomMap[room.ID] = entry
					}
					if room.LastActive > 0 {
						lastActive := room.LastActive
						entry.LastActive = &lastActive
					}
				}
			}
		}

		roomList := make([]roomEntry, 0, len(roomMap))
		for _, entry := range roomMap {
			roomList = append(roomList, *entry)
		}

		sort.Slice(roomList, func(i, j int) bool {
			if roomList[i].Users == roomList[j].Users {
				li, lj := int64(0), int64(0)
				if roomList[i].LastActive != nil {
					li = *roomList[i].LastActive
				}
				if roomList[j].LastActive != nil {
					lj = *roomList[j].LastActive
				}
				if li == lj {
					return roomList[i].ID < roomList[j].ID
				}
				return li > lj
			}
			return roomList[i].Users > roomList[j].Users
		})

		render.JSON(w, r, roomList)
	}
}

func waitForShutdown(srv *http.Server) {
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-sigC

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("shutdown did not complete cleanly")
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found")
	}

	logLevel := flag.String("loglevel", "info", "Set the logging level: debug, info, warn, error, fatal, panic")
	listenAddr := flag.String("listen", ":3001", "Set the server listen address")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	store := stores.GetStore()

	var auth core.Authorizer = core.OwnerOrCollaborator{}
	hub := websocket.NewHub(store, store, nil)

	r := setupRouter(store, hub, auth)

	srv := &http.Server{Addr: *listenAddr, Handler: r}
	logrus.WithField("addr", *listenAddr).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(srv)
}
