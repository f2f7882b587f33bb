package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// chatsim drives the widget WebSocket endpoint with a scripted
// conversation, for demos and manual end-to-end checks:
//
//	go run ./cmd/chatsim -base ws://localhost:8080 \
//	  "Quiero rosas para mi aniversario" "Agrega el primero al carrito"
type frame struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Role      string          `json:"role,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Products  json.RawMessage `json:"products,omitempty"`
	Cart      json.RawMessage `json:"cart,omitempty"`
}

func main() {
	_ = godotenv.Load()

	base := flag.String("base", "ws://localhost:8080", "server base URL (ws:// or wss://)")
	key := flag.String("key", os.Getenv("WIDGET_API_KEY"), "widget API key, if the server requires one")
	session := flag.String("session", "", "resume an existing widget session")
	wait := flag.Duration("wait", 4*time.Second, "how long to wait for replies after each message")
	flag.Parse()

	script := flag.Args()
	if len(script) == 0 {
		script = []string{
			"Hola, busco un regalo para mi mamá",
			"Algo con rosas, máximo 150 soles",
			"Agrega el primero al carrito",
			"Genera el link de pago",
		}
	}

	wsURL := strings.TrimRight(*base, "/") + "/chat/ws"
	q := url.Values{}
	if *key != "" {
		q.Set("key", *key)
	}
	if *session != "" {
		q.Set("session", *session)
	}
	if enc := q.Encode(); enc != "" {
		wsURL += "?" + enc
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", wsURL, err)
		os.Exit(1)
	}
	defer conn.Close()

	frames := make(chan frame, 32)
	go func() {
		defer close(frames)
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	}()

	// The server opens with a session frame.
	select {
	case f := <-frames:
		if f.Type == "session" {
			fmt.Printf("session: %s\n", f.SessionID)
		}
	case <-time.After(*wait):
		fmt.Fprintln(os.Stderr, "no session frame received")
		os.Exit(1)
	}

	for _, line := range script {
		fmt.Printf("\n> %s\n", line)
		msg := map[string]string{"type": "message", "text": line}
		if err := conn.WriteJSON(msg); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		drain(frames, *wait)
	}
}

func drain(frames chan frame, wait time.Duration) {
	deadline := time.After(wait)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			switch f.Type {
			case "message":
				fmt.Printf("< %s\n", f.Text)
			case "typing":
				// ignore
			case "products":
				fmt.Printf("< [productos] %s\n", string(f.Products))
			case "cart":
				fmt.Printf("< [carrito] %s\n", string(f.Cart))
			case "error":
				fmt.Printf("< [error] %s\n", f.Text)
			}
		case <-deadline:
			return
		}
	}
}
