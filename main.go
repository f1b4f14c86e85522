package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dbPath := flag.String("db", "skyloot.db", "Path to SQLite database")
	worldName := flag.String("world", "Skyloot", "World display name")
	botCount := flag.Int("bots", 4, "Number of bot pilots")
	publicURL := flag.String("public-url", "http://localhost:8080", "Externally reachable base URL (for join QR)")
	flag.Parse()

	db, err := OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	world := NewWorld(*worldName)
	world.RegisterMode(&BountySweep{})
	hub := NewHub(world, db)
	go hub.Run()

	coord := NewCoordinator(world)
	bots := NewBotController(world)
	for i := 0; i < *botCount; i++ {
		b, err := bots.Spawn(fmt.Sprintf("Corsair-%d", i+1))
		if err != nil {
			log.Printf("bot spawn: %v", err)
			break
		}
		coord.AddBot(b)
	}
	go coord.Run()

	mux := SetupRoutes(hub, *publicURL)
	server := &http.Server{Addr: *addr, Handler: mux}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("world %s (%s) listening on %s", world.Name, world.ID, *addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	coord.Stop()
	hub.analytics.Stop()
	server.Close()
}
