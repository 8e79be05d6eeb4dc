package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/index"
	"github.com/Aman-CERP/foldersearch/internal/search"
	"github.com/Aman-CERP/foldersearch/pkg/version"
)

// ServerName is the implementation name reported to MCP clients.
const ServerName = "foldersearch"

// Limits for the search tool.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 500
)

// Options configures a Server.
type Options struct {
	// AutoSync runs a sync pass before every search so results reflect the
	// folder at request time. Serve mode leaves it off because the watcher
	// keeps the index current.
	AutoSync bool

	// ResultCap bounds the hits resolved per query. The per-call limit, at
	// most MaxSearchLimit, applies first.
	ResultCap int

	Logger *slog.Logger
}

// Server is the MCP server for one indexed folder.
type Server struct {
	mcp        *mcp.Server
	syncer     *index.Synchronizer
	dispatcher *search.Dispatcher
	opts       Options
	logger     *slog.Logger

	// mu serializes tool calls that touch the index writer.
	mu sync.Mutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        ToolSearch,
		Description: "Search the indexed folder. A query with regex metacharacters runs as a regular expression over indexed terms, a query with spaces runs as an exact phrase, anything else runs as a term query. Returns matching file paths in relevance order.",
	},
	{
		Name:        ToolSync,
		Description: "Bring the index up to date with the folder: re-index files modified since the last pass and drop files that no longer exist.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Report the indexed folder, document count and the time of the last completed sync.",
	},
	{
		Name:        ToolReadDocument,
		Description: "Return the indexed contents of one file. Files larger than the configured size cap are stored truncated.",
	},
}

// NewServer creates a new MCP server over syncer's index.
func NewServer(syncer *index.Synchronizer, opts Options) (*Server, error) {
	if syncer == nil {
		return nil, errors.New("synchronizer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		syncer: syncer,
		dispatcher: search.NewDispatcher(syncer.Index().Reader(),
			search.WithResultCap(opts.ResultCap)),
		opts:   opts,
		logger: opts.Logger,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    ServerName,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

func (s *Server) registerTools() {
	for _, info := range toolInfos {
		tool := &mcp.Tool{Name: info.Name, Description: info.Description}
		switch info.Name {
		case ToolSearch:
			mcp.AddTool(s.mcp, tool, s.mcpSearchHandler)
		case ToolSync:
			mcp.AddTool(s.mcp, tool, s.mcpSyncHandler)
		case ToolIndexStatus:
			mcp.AddTool(s.mcp, tool, s.mcpIndexStatusHandler)
		case ToolReadDocument:
			mcp.AddTool(s.mcp, tool, s.mcpReadDocumentHandler)
		}
		s.logger.Debug("tool_registered", slog.String("name", info.Name))
	}
	s.logger.Info("mcp_tools_registered", slog.Int("count", len(toolInfos)))
}

// CallTool invokes a tool by name with JSON-style arguments, bypassing the
// transport. Used by tests and the CLI.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearch:
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.search(ctx, in)
	case ToolSync:
		return s.sync(ctx)
	case ToolIndexStatus:
		return s.status()
	case ToolReadDocument:
		var in ReadDocumentInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.readDocument(in)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, into any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if err := json.Unmarshal(data, into); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) mcpSyncHandler(ctx context.Context, _ *mcp.CallToolRequest, _ SyncInput) (
	*mcp.CallToolResult,
	SyncOutput,
	error,
) {
	out, err := s.sync(ctx)
	if err != nil {
		return nil, SyncOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	out, err := s.status()
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) mcpReadDocumentHandler(_ context.Context, _ *mcp.CallToolRequest, input ReadDocumentInput) (
	*mcp.CallToolResult,
	ReadDocumentOutput,
	error,
) {
	out, err := s.readDocument(input)
	if err != nil {
		return nil, ReadDocumentOutput{}, err
	}
	return nil, *out, nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, NewInvalidParamsError("query parameter is required and must not be blank")
	}

	mode := search.Classify(in.Query)
	if in.Mode != "" {
		forced, err := search.ParseMode(in.Mode)
		if err != nil {
			return nil, NewInvalidParamsError(err.Error() + "; use terms, phrases or regex")
		}
		mode = forced
	}
	limit := clampLimit(in.Limit, DefaultSearchLimit, 1, MaxSearchLimit)

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.String("mode", mode.String()),
		slog.Int("limit", limit))

	if s.opts.AutoSync {
		if _, err := s.runSync(ctx); err != nil {
			s.logger.Error("mcp_search_failed", append([]any{
				slog.String("request_id", requestID),
				slog.String("stage", "sync"),
			}, fserrors.LogAttrs(err)...)...)
			return nil, MapError(err)
		}
	}

	// The query string is passed unmodified; blank-padding is part of a phrase.
	hits, total, err := s.dispatcher.Top(ctx, mode, in.Query, limit)
	if err != nil {
		s.logger.Error("mcp_search_failed", append([]any{
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
		}, fserrors.LogAttrs(err)...)...)
		return nil, MapError(err)
	}

	out := &SearchOutput{
		Mode:    mode.String(),
		Total:   int(total),
		Results: make([]SearchResultOutput, 0, len(hits)),
	}
	for _, h := range hits {
		out.Results = append(out.Results, SearchResultOutput{
			Path:    h.Path,
			Snippet: Snippet(h.Contents, DefaultSnippetRunes),
		})
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("total", out.Total),
		slog.Int("returned", len(out.Results)))
	return out, nil
}

func (s *Server) sync(ctx context.Context) (*SyncOutput, error) {
	result, err := s.runSync(ctx)
	if err != nil {
		return nil, MapError(err)
	}
	return &SyncOutput{
		PassID:               result.PassID,
		Scanned:              result.Scanned,
		Indexed:              result.Indexed,
		Truncated:            result.Truncated,
		Unchanged:            result.Unchanged,
		SkippedUnreadable:    result.Skipped,
		Deleted:              result.Deleted,
		EnumerationTruncated: result.EnumerationTruncated,
		DurationMS:           result.Duration.Milliseconds(),
	}, nil
}

// runSync retries while another process holds the index lock.
func (s *Server) runSync(ctx context.Context) (*index.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fserrors.RetryWithResult(ctx, fserrors.DefaultRetryConfig(), func() (*index.SyncResult, error) {
		return s.syncer.Sync(ctx)
	})
}

func (s *Server) status() (*IndexStatusOutput, error) {
	st, err := s.syncer.Status()
	if err != nil {
		return nil, MapError(err)
	}
	return &IndexStatusOutput{
		Folder:     st.Folder,
		Location:   st.Location,
		Documents:  st.DocCount,
		LastSynced: formatTime(st.Watermark),
		Generation: uint64(st.Generation),
		AutoSync:   s.opts.AutoSync,
	}, nil
}

func (s *Server) readDocument(in ReadDocumentInput) (*ReadDocumentOutput, error) {
	path, err := s.resolvePath(in.Path)
	if err != nil {
		return nil, err
	}

	doc, ok, err := s.syncer.Index().Reader().Document(path)
	if err != nil {
		return nil, MapError(err)
	}
	if !ok {
		return nil, MapError(fserrors.New(fserrors.ErrCodeFileNotFound, "document not indexed", nil).
			WithDetail("path", path).
			WithSuggestion("Run the sync tool if the file was created recently"))
	}
	return &ReadDocumentOutput{
		Path:     doc.Path,
		MIMEType: MimeTypeForPath(doc.Path),
		Contents: doc.Contents,
	}, nil
}

// resolvePath maps a client-supplied path to a document ID inside the folder.
func (s *Server) resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", NewInvalidParamsError("path parameter is required")
	}
	folder := s.syncer.Folder()
	if !filepath.IsAbs(p) {
		p = filepath.Join(folder, p)
	}
	p = filepath.Clean(p)

	rel, err := filepath.Rel(folder, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", NewInvalidParamsError(fmt.Sprintf("path %s is outside the indexed folder", p))
	}
	return p, nil
}

// Serve runs the server over stdio until ctx is done or the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_started",
		slog.String("folder", s.syncer.Folder()),
		slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// clampLimit returns def when limit is unset, otherwise limit bounded to [lo, hi].
func clampLimit(limit, def, lo, hi int) int {
	if limit <= 0 {
		return def
	}
	if limit < lo {
		return lo
	}
	if limit > hi {
		return hi
	}
	return limit
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
