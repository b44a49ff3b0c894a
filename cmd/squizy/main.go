package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"squizy/internal/config"
	"squizy/internal/service"
	"squizy/internal/transport/ws"
)

const usage = `usage: squizy [-server URL] [-audio PATH] host
       squizy [-server URL] [-audio PATH] join CODE NAME [AVATAR]`

func main() {
	server := flag.String("server", "http://localhost:8080", "relay base URL")
	audio := flag.String("audio", "", "write narration as raw 24kHz 16-bit mono PCM to this file or pipe")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aiConfig := config.DefaultAIConfig()
	if aiConfig.IsEnabled() {
		log.Printf("[content] Gemini configured (%s)", aiConfig.Models.Content)
	} else {
		log.Println("[content] GEMINI_API_KEY not set, using built-in questions")
	}

	sink := service.PacedSink{}
	if *audio != "" {
		f, err := os.OpenFile(*audio, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatal("Failed to open audio output:", err)
		}
		defer f.Close()
		sink.Out = f
		log.Printf("[content] narration audio goes to %s", *audio)
	}

	client := service.NewClient(
		ws.NewRemoteStore(*server),
		service.NewContentService(aiConfig),
		service.NewVoice(aiConfig, sink, os.Stdout),
		service.NewCues(aiConfig.Language),
	)
	defer client.Close()

	t := &terminal{client: client, out: os.Stdout}
	client.Observe(t.render)

	switch args[0] {
	case "host":
		code, err := client.HostRoom(ctx)
		if err != nil {
			log.Fatal("Failed to host room:", err)
		}
		fmt.Printf("Room %s is open. Join link: %s/v1/rooms/%s/qr\n", code, *server, code)
	case "join":
		if len(args) < 3 {
			flag.Usage()
			os.Exit(2)
		}
		avatar := ""
		if len(args) > 3 {
			avatar = args[3]
		}
		if err := client.JoinRoom(ctx, args[1], args[2], avatar); err != nil {
			log.Fatal("Failed to join room:", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			quit, err := t.run(ctx, line)
			if err != nil {
				fmt.Fprintf(os.Stdout, "! %v\n", err)
			}
			if quit {
				return
			}
		}
	}
}
