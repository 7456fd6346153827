// Package main runs a demo WebSocket client for solve events.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func main() {
	body := flag.String("body", "", "optional POST /v1/solve body to send after connecting")
	wait := flag.Duration("wait", 30*time.Second, "how long to listen")
	flag.Parse()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/solves/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			data, _ := json.Marshal(m.Data)
			log.Printf("WS <- %s: %s", m.Type, string(data))
		}
	}()

	if *body != "" {
		b, err := os.ReadFile(*body)
		if err != nil {
			log.Fatal(err)
		}
		time.Sleep(200 * time.Millisecond)
		resp, err := http.Post(base+"/v1/solve", "application/json", bytes.NewReader(b))
		if err != nil {
			log.Fatal(err)
		}
		_ = resp.Body.Close()
		log.Printf("POST /v1/solve -> %d", resp.StatusCode)
	}

	select {
	case <-time.After(*wait):
	case <-done:
	}
}
