// Package main runs a demo WebSocket client: it creates a session, builds
// routes, starts playback and prints streamed events until completion.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	city := flag.String("city", "bangalore", "city preset")
	orders := flag.Int("orders", 15, "orders to generate")
	agents := flag.Int("agents", 3, "delivery agents")
	speed := flag.Float64("speed", 2, "playback speed")
	frames := flag.Bool("frames", false, "print every frame")
	flag.Parse()

	host := "localhost:" + port
	base := "http://" + host

	body, _ := json.Marshal(map[string]any{"city": *city, "orders": *orders, "agents": *agents})
	resp, err := http.Post(base+"/v1/sessions", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		log.Fatalf("create session: %s", resp.Status)
	}
	var sess struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		log.Fatal(err)
	}
	log.WithField("session", sess.ID).Info("session created")

	u := url.URL{Scheme: "ws", Host: host, Path: "/v1/sessions/" + sess.ID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(map[string]any{"type": "speed", "speed": *speed}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(map[string]any{"type": "play"}); err != nil {
		log.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Minute)
	for time.Now().Before(deadline) {
		var evt event
		if err := c.ReadJSON(&evt); err != nil {
			log.Fatal("read:", err)
		}
		switch evt.Type {
		case "playback.frame":
			if *frames {
				fmt.Printf("frame progress=%.1f agents=%d\n", evt.Data["progress"], len(evt.Data["agents"].([]any)))
			}
		case "delivery.completed":
			fmt.Printf("agent %v delivered %v at %.1f%%\n", evt.Data["agent"], evt.Data["orderId"], evt.Data["progress"])
		case "playback.state":
			fmt.Printf("state %v progress=%.1f\n", evt.Data["phase"], evt.Data["progress"])
			if evt.Data["phase"] == "complete" {
				return
			}
		case "error":
			log.Warn(evt.Data["message"])
		}
	}
	log.Warn("timed out waiting for playback to complete")
}
