package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/relay"
	"github.com/aretw0/relay/internal/logging"
	"github.com/aretw0/relay/pkg/dispatch"
	"github.com/aretw0/relay/pkg/domain"
	"github.com/aretw0/relay/pkg/routing"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DispatchResponse is the structured result of the dispatch_event tool.
type DispatchResponse struct {
	EventID string   `json:"event_id" jsonschema_description:"Identifier assigned to the event"`
	Outcome string   `json:"outcome" jsonschema_description:"What the dispatcher did with the event"`
	Route   string   `json:"route,omitempty" jsonschema_description:"Route that handled or refused the event"`
	Reason  string   `json:"reason,omitempty" jsonschema_description:"Denial reason, when denied"`
	Invoked []string `json:"invoked,omitempty" jsonschema_description:"Text triggers that ran"`
	Error   string   `json:"error,omitempty" jsonschema_description:"Fault description, when failed"`
}

// Dispatcher is the part of the core exposed as tools.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) dispatch.Result
}

// SessionLister exposes active sessions.
type SessionLister interface {
	List(ctx context.Context) ([]*domain.Session, error)
}

// Server exposes the dispatcher to MCP clients, so an agent can drive and
// inspect a bot without a chat platform.
type Server struct {
	dispatcher Dispatcher
	sessions   SessionLister
	table      *routing.Table
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP Server instance.
func NewServer(d Dispatcher, sessions SessionLister, table *routing.Table, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		dispatcher: d,
		sessions:   sessions,
		table:      table,
		logger:     logger,
		mcpServer:  server.NewMCPServer("relay-mcp", strings.TrimSpace(relay.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	dispatchTool := mcp.NewTool("dispatch_event",
		mcp.WithDescription("Dispatch one chat event (command, callback or text) as if it came from the platform."),
		mcp.WithNumber("actor_id", mcp.Required(), mcp.Description("User that produced the event")),
		mcp.WithString("kind", mcp.Required(), mcp.Description("Event kind"),
			mcp.Enum(string(domain.KindCommand), string(domain.KindCallback), string(domain.KindText), string(domain.KindOther))),
		mcp.WithString("payload", mcp.Description("Command text, callback data or message text")),
		mcp.WithNumber("chat_id", mcp.Description("Chat id (defaults to the actor id, a private chat)")),
		mcp.WithString("chat_type", mcp.Description("private, group, supergroup or channel")),
		mcp.WithNumber("origin_message_id", mcp.Description("Message carrying the clicked button, for callbacks")),
		mcp.WithOutputSchema[DispatchResponse](),
	)
	s.mcpServer.AddTool(dispatchTool, mcp.NewStructuredToolHandler(s.handleDispatch))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List active conversation sessions."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := s.sessions.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(list)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_routes",
		mcp.WithDescription("List the active routes with their triggers and access flags."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.table.Describe())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleDispatch(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (DispatchResponse, error) {
	ev, err := eventFromArgs(args)
	if err != nil {
		return DispatchResponse{}, err
	}

	res := s.dispatcher.Dispatch(ctx, ev)
	resp := DispatchResponse{
		EventID: ev.ID,
		Outcome: string(res.Outcome),
		Route:   res.Route,
		Reason:  string(res.Reason),
		Invoked: res.Invoked,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp, nil
}

func eventFromArgs(args map[string]interface{}) (domain.Event, error) {
	actor, _ := args["actor_id"].(float64)
	if actor == 0 {
		return domain.Event{}, fmt.Errorf("actor_id is required")
	}
	kind, _ := args["kind"].(string)
	if !domain.EventKind(kind).Valid() {
		return domain.Event{}, fmt.Errorf("unknown kind %q", kind)
	}
	payload, _ := args["payload"].(string)

	clean, err := domain.SanitizePayload(payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("payload rejected: %w", err)
	}

	ev := domain.Event{
		ID:       uuid.NewString(),
		ActorID:  int64(actor),
		ChatID:   int64(actor),
		ChatType: domain.ChatPrivate,
		Kind:     domain.EventKind(kind),
		Payload:  clean,
	}
	if chat, ok := args["chat_id"].(float64); ok && chat != 0 {
		ev.ChatID = int64(chat)
	}
	if ct, ok := args["chat_type"].(string); ok && ct != "" {
		ev.ChatType = domain.ChatType(ct)
	}
	if origin, ok := args["origin_message_id"].(float64); ok {
		ev.OriginMessageID = int(origin)
	}
	return ev, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("relay://routes", "Active Route Table",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.table.Describe())
		if err != nil {
			return nil, fmt.Errorf("failed to describe routes: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "relay://routes",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
