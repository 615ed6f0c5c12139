// Package mcpserver exposes question answering over the Model Context Protocol,
// so assistants can query the indexed documents as tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/files"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const Version = "1.0.0"

var (
	ErrMissingEngine = errors.New("mcp: answer engine is required")
	ErrMissingFiles  = errors.New("mcp: file manager is required")
)

// Engine is the part of rag.Service the tools call.
type Engine interface {
	Query(ctx context.Context, question string) commonModels.Answer
	Search(ctx context.Context, question string, k int) []commonModels.SearchResult
	K() int
}

type FileLister interface {
	List() ([]files.FileInfo, error)
}

type Ports struct {
	Engine Engine
	Files  FileLister
}

func (p *Ports) Validate() error {
	if p.Engine == nil {
		return ErrMissingEngine
	}
	if p.Files == nil {
		return ErrMissingFiles
	}
	return nil
}

type Server struct {
	ports  *Ports
	server *mcp.Server
	logger *logger_i.Logger
}

func New(ports *Ports) (*Server, error) {
	if ports == nil {
		return nil, ErrMissingEngine
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}
	s := &Server{
		ports:  ports,
		server: mcp.NewServer(&mcp.Implementation{Name: "docqa", Version: Version}, nil),
		logger: logger_i.NewLogger("mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	s.logger.Info("MCP server listening", "address", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
