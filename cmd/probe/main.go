// Probe dials the relay websocket, sends a ping control frame and waits
// for the pong. It exits non-zero when the pong does not arrive within
// the deadline, so uptime monitors can alert on it.
package main

import (
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const pongTimeout = 10 * time.Second

func main() {
	url := os.Getenv("URL")
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if url == "" {
		log.Fatal("probe: set URL or pass the websocket URL as an argument")
	}

	dialer := websocket.Dialer{HandshakeTimeout: pongTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("probe: dial %s: %v", url, err)
	}
	defer conn.Close()

	pong := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	// Control frames are only processed while a read is in flight.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	conn.SetWriteDeadline(time.Now().Add(pongTimeout))
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Fatalf("probe: ping: %v", err)
	}

	select {
	case <-pong:
		log.Println("probe: ok")
	case <-time.After(pongTimeout):
		log.Fatalf("probe: no pong within %s", pongTimeout)
	}
}
