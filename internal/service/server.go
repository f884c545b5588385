// Package service exposes the provider over JSON-RPC 2.0 with
// Content-Length framed messages on a byte stream, the transport analyzer
// hosts speak.
package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	provider "github.com/savitharaghunathan/c-sharp-analyzer-provider"
)

// Server serves one provider instance over a reader/writer pair.
type Server struct {
	provider *provider.Provider

	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	shutdown   bool
	shutdownMu sync.RWMutex
}

// NewServer creates a server for p speaking on reader and writer.
func NewServer(p *provider.Provider, reader io.Reader, writer io.Writer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		provider: p,
		reader:   bufio.NewReader(reader),
		writer:   writer,
		logger:   logger,
	}
}

// Run processes JSON-RPC messages until stop is requested or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("c-sharp analyzer provider serving")

	for {
		s.shutdownMu.RLock()
		if s.shutdown {
			s.shutdownMu.RUnlock()
			return nil
		}
		s.shutdownMu.RUnlock()

		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			s.logger.Error("error reading message", "error", err)
			continue
		}

		if err := s.handleMessage(ctx, msg); err != nil {
			s.logger.Error("error handling message", "method", msg.Method, "error", err)
		}
	}
}

// readMessage reads one Content-Length framed message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break
		}

		if after, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			contentLength, err = strconv.Atoi(after)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("error parsing message: %w", err)
	}
	return &msg, nil
}

func (s *Server) sendResponse(id *json.RawMessage, result any, rpcErr *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}
	if rpcErr != nil {
		msg.Error = rpcErr
	} else {
		resultBytes, _ := json.Marshal(result)
		msg.Result = resultBytes
	}
	s.writeMessage(&msg)
}

func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}
	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}
	s.writeMessage(&msg)
}

func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("error marshaling message", "error", err)
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(ctx context.Context, msg *JSONRPCMessage) error {
	s.logger.Debug("received", "method", msg.Method)

	switch msg.Method {
	case "capabilities":
		return s.handleCapabilities(msg)
	case "init":
		return s.handleInit(ctx, msg)
	case "prepare":
		s.sendResponse(msg.ID, PrepareResponse{}, nil)
		return nil
	case "streamPrepareProgress":
		return s.handleStreamPrepareProgress(msg)
	case "evaluate":
		return s.handleEvaluate(ctx, msg)
	case "stop":
		return s.handleStop(msg)
	case "getDependencies":
		s.sendResponse(msg.ID, DependencyResponse{Successful: true, FileDep: []any{}}, nil)
		return nil
	case "getDependenciesDAG":
		s.sendResponse(msg.ID, DependencyDAGResponse{Successful: true, FileDagDep: []any{}}, nil)
		return nil
	case "notifyFileChanges":
		s.sendResponse(msg.ID, NotifyFileChangesResponse{}, nil)
		return nil
	default:
		if msg.ID != nil {
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    -32601,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

func (s *Server) handleCapabilities(msg *JSONRPCMessage) error {
	caps, err := s.provider.Capabilities()
	if err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32603, Message: err.Error()})
		return err
	}
	descriptors := make([]CapabilityDescriptor, 0, len(caps))
	for _, c := range caps {
		descriptors = append(descriptors, CapabilityDescriptor{
			Name:            c.Name,
			TemplateContext: c.TemplateContext,
		})
	}
	s.sendResponse(msg.ID, CapabilitiesResponse{Capabilities: descriptors}, nil)
	return nil
}

func (s *Server) handleInit(ctx context.Context, msg *JSONRPCMessage) error {
	var cfg provider.Config
	if err := json.Unmarshal(msg.Params, &cfg); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32602, Message: err.Error()})
		return err
	}

	if err := s.provider.Init(ctx, cfg); err != nil {
		s.sendResponse(msg.ID, InitResponse{Error: err.Error()}, nil)
		return err
	}
	s.sendResponse(msg.ID, InitResponse{Successful: true, ID: 4}, nil)
	return nil
}

// handleStreamPrepareProgress emits one progress notification and then
// responds; there is no incremental prepare work to report.
func (s *Server) handleStreamPrepareProgress(msg *JSONRPCMessage) error {
	s.sendNotification("prepareProgress", ProgressEvent{
		Type:         "Prepare",
		ProviderName: "c-sharp",
	})
	s.sendResponse(msg.ID, PrepareResponse{}, nil)
	return nil
}

func (s *Server) handleEvaluate(ctx context.Context, msg *JSONRPCMessage) error {
	var params EvaluateParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32602, Message: err.Error()})
		return err
	}

	resp, err := s.provider.Evaluate(ctx, params.Cap, []byte(params.ConditionInfo))
	if err != nil {
		s.sendResponse(msg.ID, nil, &JSONRPCError{Code: -32603, Message: err.Error()})
		return err
	}
	s.sendResponse(msg.ID, resp, nil)
	return nil
}

func (s *Server) handleStop(msg *JSONRPCMessage) error {
	s.shutdownMu.Lock()
	s.shutdown = true
	s.shutdownMu.Unlock()

	err := s.provider.Stop()
	if err != nil {
		s.logger.Error("error stopping provider", "error", err)
	}
	s.sendResponse(msg.ID, struct{}{}, nil)
	s.logger.Info("provider stopped")
	return err
}
