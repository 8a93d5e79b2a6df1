// Command chat is a terminal client for the realtime service. It logs
// in (or reuses HEARTLINE_TOKEN), joins a chat room, prints pushed
// events, and sends each typed line as a message.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"heartline/client/internal/config"
	"heartline/client/internal/models"
	"heartline/client/internal/session"
	"heartline/client/internal/socket"
	"heartline/client/internal/wire"
)

func main() {
	cfg := config.Load()

	room := flag.String("room", "lobby", "chat room to join")
	email := flag.String("email", "", "login email (skipped when HEARTLINE_TOKEN is set)")
	password := flag.String("password", "", "login password")
	flag.Parse()

	socketURL := "ws" + strings.TrimPrefix(cfg.ServerURL, "http") + "/api/v1/ws"
	sess := session.New(session.Config{
		ServerURL: cfg.ServerURL,
		Notify:    func(message string) { fmt.Printf("! %s\n", message) },
	}, socket.Config{URL: socketURL})
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch {
	case cfg.Token != "":
		if err := sess.Connect(cfg.Token); err != nil {
			log.Fatalf("connect: %v", err)
		}
	case *email != "" && *password != "":
		if err := sess.Login(ctx, *email, *password); err != nil {
			log.Fatalf("login: %v", err)
		}
	default:
		log.Fatal("set HEARTLINE_TOKEN or pass -email and -password")
	}

	self := sess.Socket().Identity()
	fmt.Printf("connected as %s, room %s\n", self.Nickname, *room)

	sess.Socket().OnNewMessage(func(msg models.ChatMessage) {
		if msg.RoomID != *room {
			return
		}
		fmt.Printf("[%s] %s: %s\n", msg.SentAt.Format("15:04:05"), msg.Nickname, msg.Content)
	})
	sess.Socket().OnUserJoined(func(p wire.PresencePayload) {
		if p.RoomID == *room && p.UserID != self.UserID {
			fmt.Printf("* %s joined\n", p.Nickname)
		}
	})
	sess.Socket().OnUserLeft(func(p wire.PresencePayload) {
		if p.RoomID == *room {
			fmt.Printf("* %s left\n", p.Nickname)
		}
	})
	sess.Socket().OnTypingStart(func(p wire.TypingPayload) {
		if p.RoomID == *room && p.UserID != self.UserID {
			fmt.Printf("* %s is typing\n", p.Nickname)
		}
	})
	sess.Socket().OnSystemAnnouncement(func(p wire.AnnouncementPayload) {
		fmt.Printf("*** %s\n", p.Message)
	})
	sess.Socket().OnDisconnect(func() { fmt.Println("* connection lost, reconnecting") })
	sess.Socket().OnConnect(func() { sess.JoinChatRoom(*room) })
	sess.Socket().OnReconnectFailed(func() {
		fmt.Println("* could not reconnect, exiting")
		os.Exit(1)
	})

	sess.JoinChatRoom(*room)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "/quit" {
				break
			}
			sess.Keystroke(*room)
			if err := sess.SendChatMessage(*room, line); err != nil {
				fmt.Printf("! send failed: %v\n", err)
			}
		}
		stopSelf()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	fmt.Println("bye")
}

func stopSelf() {
	_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
}
