package mockledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// JSON-RPC error codes as the Solana node reports them.
const (
	CodeParseError         = -32700
	CodeMethodNotFound     = -32601
	CodeInvalidParams      = -32602
	CodeBlockNotAvailable  = -32004
	CodeNodeUnhealthy      = -32005
	CodeSlotSkipped        = -32007
	CodeLongTermStorageGap = -32009
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcResponse carries only the fields a strict client accepts.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type blockOpts struct {
	Encoding           string `json:"encoding"`
	TransactionDetails string `json:"transactionDetails"`
	Commitment         string `json:"commitment"`
}

type Server struct {
	chain *Chain
	log   *zap.Logger

	mu     sync.Mutex
	faults map[string]int
}

func NewServer(chain *Chain, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		chain:  chain,
		log:    log.With(zap.String("component", "rpc")),
		faults: make(map[string]int),
	}
}

// InjectFailures makes the next n calls of method fail with a node-unhealthy
// error.
func (s *Server) InjectFailures(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[method] += n
}

func (s *Server) takeFault(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.faults[method] > 0 {
		s.faults[method]--
		return true
	}
	return false
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRPC).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

// -------------------- helpers --------------------

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func reply(w http.ResponseWriter, id json.RawMessage, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		fail(w, id, -32603, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", Result: raw, ID: id})
}

func fail(w http.ResponseWriter, id json.RawMessage, code int, msg string) {
	writeJSON(w, http.StatusOK, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: msg}, ID: id})
}

func paramU64(params []json.RawMessage, i int) (uint64, bool, error) {
	if i >= len(params) {
		return 0, false, nil
	}
	var v *uint64
	if err := json.Unmarshal(params[i], &v); err != nil {
		return 0, false, err
	}
	if v == nil {
		return 0, false, nil
	}
	return *v, true, nil
}

// -------------------- handlers --------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, ok := s.chain.Head()
	if !ok {
		http.Error(w, "no blocks yet", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, json.RawMessage("null"), CodeParseError, "Parse error")
		return
	}
	if len(req.ID) == 0 {
		req.ID = json.RawMessage("null")
	}

	if s.takeFault(req.Method) {
		fail(w, req.ID, CodeNodeUnhealthy, "Node is unhealthy")
		return
	}

	switch req.Method {
	case "getSlot":
		s.getSlot(w, req)
	case "getBlocks":
		s.getBlocks(w, req)
	case "getBlock":
		s.getBlock(w, req)
	default:
		fail(w, req.ID, CodeMethodNotFound, "Method not found")
	}
}

func (s *Server) getSlot(w http.ResponseWriter, req rpcRequest) {
	head, ok := s.chain.Head()
	if !ok {
		fail(w, req.ID, CodeNodeUnhealthy, "Node has no slots yet")
		return
	}
	reply(w, req.ID, head)
}

func (s *Server) getBlocks(w http.ResponseWriter, req rpcRequest) {
	start, ok, err := paramU64(req.Params, 0)
	if err != nil || !ok {
		fail(w, req.ID, CodeInvalidParams, "Invalid params: start slot required")
		return
	}
	end, hasEnd, err := paramU64(req.Params, 1)
	if err != nil {
		// second param may be the config object when end is omitted
		hasEnd = false
	}
	if !hasEnd {
		end, _ = s.chain.Head()
	}
	if end < start {
		reply(w, req.ID, []uint64{})
		return
	}
	reply(w, req.ID, s.chain.Produced(start, end))
}

func (s *Server) getBlock(w http.ResponseWriter, req rpcRequest) {
	slot, ok, err := paramU64(req.Params, 0)
	if err != nil || !ok {
		fail(w, req.ID, CodeInvalidParams, "Invalid params: slot required")
		return
	}
	if len(req.Params) > 1 {
		var opts blockOpts
		if err := json.Unmarshal(req.Params[1], &opts); err != nil {
			fail(w, req.ID, CodeInvalidParams, "Invalid params: "+err.Error())
			return
		}
		if opts.Encoding != "" && opts.Encoding != "jsonParsed" {
			fail(w, req.ID, CodeInvalidParams, fmt.Sprintf("Invalid params: encoding %q not served", opts.Encoding))
			return
		}
	}

	blk, status := s.chain.Block(slot)
	switch status {
	case SlotProduced:
		reply(w, req.ID, blk)
	case SlotSkipped:
		fail(w, req.ID, CodeSlotSkipped,
			fmt.Sprintf("Slot %d was skipped, or missing due to ledger jump to recent snapshot", slot))
	case SlotPruned:
		fail(w, req.ID, CodeLongTermStorageGap,
			fmt.Sprintf("Slot %d was skipped, or missing in long-term storage", slot))
	default:
		fail(w, req.ID, CodeBlockNotAvailable, fmt.Sprintf("Block not available for slot %d", slot))
	}
}
