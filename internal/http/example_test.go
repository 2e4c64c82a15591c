package http_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/codeindex/internal/http"
	"github.com/fyrsmithlabs/codeindex/internal/vectorstore"
)

// ExampleServer demonstrates serving an in-memory store until the context ends.
func ExampleServer() {
	logger := zap.NewNop()

	store := vectorstore.NewChromemStore(vectorstore.ChromemConfig{}, logger)
	defer store.Close()

	server, err := httpserver.NewServer(store, nil, logger, &httpserver.Config{
		Host:            "127.0.0.1",
		Port:            0,
		ShutdownTimeout: 5 * time.Second,
	})
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := server.Run(ctx); err != nil {
		fmt.Println("server error:", err)
		return
	}
	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
