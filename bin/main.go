package main

import (
	"backend/lib/server"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

func main() {

	battle_server, err := server.New()
	if err != nil {
		panic(fmt.Sprintf("cannot start server: %s", err))
	}

	battle_server.Start()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := battle_server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	err = battle_server.Listen(fmt.Sprintf(":%d", port))
	if err != nil {
		panic(fmt.Sprintf("cannot start server: %s", err))
	}
}
