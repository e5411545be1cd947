package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"tableflip.dev/tilegrid/pkg/config"
	"tableflip.dev/tilegrid/pkg/grid"
	"tableflip.dev/tilegrid/pkg/pipeline"
	"tableflip.dev/tilegrid/pkg/tiles"
)

// Transport selects the mechanism used to expose the MCP server.
type Transport string

const (
	// TransportHTTP serves MCP via the streamable HTTP transport.
	TransportHTTP Transport = "http"
	// TransportStdio serves MCP over stdio.
	TransportStdio Transport = "stdio"
)

// Runner coordinates MCP server startup.
type Runner struct {
	Config  *config.Config
	Tiles   []grid.TileState
	Name    string
	Version string
	Logger  *slog.Logger

	Transport        Transport
	HTTPListenAddr   string
	HTTPEndpointPath string
	OnHTTPListening  func(net.Addr)
}

// NewServer returns an MCP server with every tilegrid tool registered.
func NewServer(name, version string, svc *Service) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: version,
	}, &mcp.ServerOptions{
		Instructions: "Inspect and warm a virtualized tile grid: compute layouts, preload visible images and read cache statistics.",
	})
	registerTools(srv, svc)
	return srv
}

// Do executes the runner.
func (r Runner) Do(ctx context.Context) error {
	if r.Config == nil {
		return errors.New("mcp runner requires a config")
	}
	name := r.Name
	if name == "" {
		name = "tilegrid"
	}
	version := r.Version
	if version == "" {
		version = "dev"
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pipe, err := pipeline.Open(ctx, r.Config, pipeline.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer pipe.Close()

	svc := NewService(pipe, r.Tiles)
	srv := NewServer(name, version, svc)

	var events <-chan tiles.Event
	if path := r.Config.TilesPath; path != "" {
		if events, err = tiles.Watch(ctx, path, tiles.DefaultWatchDelay, logger); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipe.Run(gctx)
	})
	if events != nil {
		g.Go(func() error {
			for ev := range events {
				if ev.Err != nil {
					logger.Warn("tiles reload failed", "path", r.Config.TilesPath, "error", ev.Err)
					continue
				}
				svc.SetTiles(ev.Tiles)
				logger.Info("tiles reloaded", "path", r.Config.TilesPath, "count", len(ev.Tiles))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer cancel()
		switch t := r.Transport; t {
		case "", TransportStdio:
			err := srv.Run(gctx, &mcp.StdioTransport{})
			if gctx.Err() != nil {
				return nil
			}
			return err
		case TransportHTTP:
			return r.serveHTTP(gctx, srv)
		default:
			return fmt.Errorf("unknown MCP transport %q", t)
		}
	})
	return g.Wait()
}

func (r Runner) serveHTTP(ctx context.Context, srv *mcp.Server) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return srv
	}, nil)

	path := r.HTTPEndpointPath
	if path == "" {
		path = "/mcp"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	listenAddr := r.HTTPListenAddr
	if listenAddr == "" {
		listenAddr = "127.0.0.1:8080"
	}

	mux := http.NewServeMux()
	mux.Handle(path, handler)

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	if r.OnHTTPListening != nil {
		r.OnHTTPListening(ln.Addr())
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	err = httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
