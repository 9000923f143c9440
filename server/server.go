package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/n9te9/go-graphql-federation-gateway/registry"
)

type registryServer struct {
	registry        *registry.Registry
	graphqlEndpoint string
}

func (s *registryServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/schema/registration":
		if req.Method == http.MethodPost {
			s.registry.RegisterGateway(w, req)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type Graph struct {
	Name string
	Host string
	SDL  string
}

func RunRegistry(graphs []*Graph) error {
	if len(graphs) == 0 {
		return errors.New("no graphs provided")
	}

	reg := registry.NewRegistry()
	reg.Start()

	s := &registryServer{
		registry:        reg,
		graphqlEndpoint: "/graphql",
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: s,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt, os.Kill)
	defer stop()
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}

// defaultGatewayConfig is scaffolded by Init for a fresh gateway.yaml.
const defaultGatewayConfig = `endpoint: /graphql
service_name: federation-gateway
port: 8081
timeout_duration: 5s
enable_hang_over_request_header: true
services: []
opentelemetry:
  tracing:
    enable: false
`

// Init scaffolds a gateway.yaml in the current directory if one does not
// already exist, so a fresh checkout has something for Run to load.
func Init() error {
	if _, err := os.Stat("gateway.yaml"); err == nil {
		return errors.New("gateway.yaml already exists")
	} else if !os.IsNotExist(err) {
		return err
	}

	return os.WriteFile("gateway.yaml", []byte(defaultGatewayConfig), 0644)
}
