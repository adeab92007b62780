// Package execution is the JSON-RPC client for the execution layer's
// engine API: newPayload, forkchoiceUpdated and getPayload over
// HTTP/HTTPS, with per-call deadlines and lazy connection establishment.
package execution

import (
	"context"
	"math/big"
	"time"

	gethRPC "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sirupsen/logrus"
	"go.opencensus.io/trace"
)

var log = logrus.WithField("prefix", "execution")

const (
	// NewPayloadMethod is the engine API method for payload submission.
	NewPayloadMethod = "engine_newPayloadV1"
	// ForkchoiceUpdatedMethod is the engine API method for head/finality updates.
	ForkchoiceUpdatedMethod = "engine_forkchoiceUpdatedV1"
	// GetPayloadMethod is the engine API method for retrieving a built payload.
	GetPayloadMethod = "engine_getPayloadV1"
)

const (
	// DefaultForkchoiceUpdatedTimeout bounds a forkchoiceUpdated call.
	DefaultForkchoiceUpdatedTimeout = 650 * time.Millisecond
	// DefaultNewPayloadTimeout bounds a newPayload call; execution can
	// legitimately take longer than a head update.
	DefaultNewPayloadTimeout = 8 * time.Second
	// DefaultGetPayloadTimeout bounds a getPayload call.
	DefaultGetPayloadTimeout = 1 * time.Second
)

// RPCClient is the narrow JSON-RPC surface the engine client needs,
// satisfied by geth's rpc.Client and by test doubles.
type RPCClient interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// EngineCaller is the interface the block processor and consensus manager
// program against; see testing.EngineClient for the mock.
type EngineCaller interface {
	NewPayload(ctx context.Context, payload *consensusblocks.ExecutionPayload) (*PayloadStatus, error)
	ForkchoiceUpdated(ctx context.Context, fcs *ForkchoiceState, attr *PayloadAttributes) (*PayloadIDBytes, *PayloadStatus, error)
	GetPayload(ctx context.Context, payloadID PayloadIDBytes) (*consensusblocks.ExecutionPayload, error)
}

// Config holds the engine endpoint and per-call timeouts.
type Config struct {
	Endpoint                 string
	AuthToken                string
	ForkchoiceUpdatedTimeout time.Duration
	NewPayloadTimeout        time.Duration
	GetPayloadTimeout        time.Duration
}

// Service is the production engine client. The connection is established
// lazily before every call (ensureDataProvider) so a restarted execution
// client is picked up without consensus-side intervention.
type Service struct {
	cfg    Config
	client RPCClient
}

// New returns an engine client for cfg, filling in default timeouts.
func New(cfg Config) *Service {
	if cfg.ForkchoiceUpdatedTimeout == 0 {
		cfg.ForkchoiceUpdatedTimeout = DefaultForkchoiceUpdatedTimeout
	}
	if cfg.NewPayloadTimeout == 0 {
		cfg.NewPayloadTimeout = DefaultNewPayloadTimeout
	}
	if cfg.GetPayloadTimeout == 0 {
		cfg.GetPayloadTimeout = DefaultGetPayloadTimeout
	}
	return &Service{cfg: cfg}
}

// NewWithClient returns a Service bound to an existing RPC client, used by
// tests to inject a double without dialing.
func NewWithClient(cfg Config, client RPCClient) *Service {
	s := New(cfg)
	s.client = client
	return s
}

// ensureDataProvider dials the endpoint if no live client exists. geth's
// rpc.Client reconnects per request over HTTP, so one successful dial is
// enough for the process lifetime unless the caller resets it.
func (s *Service) ensureDataProvider(ctx context.Context) error {
	if s.client != nil {
		return nil
	}
	client, err := gethRPC.DialContext(ctx, s.cfg.Endpoint)
	if err != nil {
		return errors.Wrap(ErrNotReachable, err.Error())
	}
	if s.cfg.AuthToken != "" {
		client.SetHeader("Authorization", "Bearer "+s.cfg.AuthToken)
	}
	s.client = client
	return nil
}

// NewPayload submits payload for execution and returns the engine's
// verdict. Transport failures and timeouts degrade to a synthetic SYNCING
// status; the error return is
// reserved for marshaling-level problems.
func (s *Service) NewPayload(ctx context.Context, payload *consensusblocks.ExecutionPayload) (*PayloadStatus, error) {
	ctx, span := trace.StartSpan(ctx, "execution.NewPayload")
	defer span.End()
	if err := s.ensureDataProvider(ctx); err != nil {
		log.WithError(err).Warn("Execution endpoint not reachable for newPayload")
		return syntheticSyncing(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NewPayloadTimeout)
	defer cancel()

	result := &PayloadStatus{}
	err := s.client.CallContext(ctx, result, NewPayloadMethod, marshalPayload(payload))
	if err != nil {
		log.WithError(err).WithField("blockHash", payload.BlockHash).Warn("newPayload RPC failed, treating as syncing")
		return syntheticSyncing(), nil
	}
	return result, nil
}

// ForkchoiceUpdated signals the engine to reorganize toward fcs and,
// optionally, start building a payload per attr. The call uses the 650 ms
// default deadline; on timeout the result degrades to SYNCING and the
// caller's loop continues.
func (s *Service) ForkchoiceUpdated(ctx context.Context, fcs *ForkchoiceState, attr *PayloadAttributes) (*PayloadIDBytes, *PayloadStatus, error) {
	ctx, span := trace.StartSpan(ctx, "execution.ForkchoiceUpdated")
	defer span.End()
	if err := s.ensureDataProvider(ctx); err != nil {
		log.WithError(err).Warn("Execution endpoint not reachable for forkchoiceUpdated")
		return nil, syntheticSyncing(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ForkchoiceUpdatedTimeout)
	defer cancel()

	result := &forkchoiceUpdatedResponse{}
	err := s.client.CallContext(ctx, result, ForkchoiceUpdatedMethod, fcs, attr)
	if err != nil {
		log.WithError(err).WithField("headBlockHash", fcs.HeadBlockHash).Warn("forkchoiceUpdated RPC failed, treating as syncing")
		return nil, syntheticSyncing(), nil
	}
	return result.PayloadID, &result.Status, nil
}

// GetPayload retrieves the payload built for payloadID. Unlike the status
// calls, a transport failure here is a hard error: the caller explicitly
// asked for an engine response.
func (s *Service) GetPayload(ctx context.Context, payloadID PayloadIDBytes) (*consensusblocks.ExecutionPayload, error) {
	ctx, span := trace.StartSpan(ctx, "execution.GetPayload")
	defer span.End()
	if err := s.ensureDataProvider(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GetPayloadTimeout)
	defer cancel()

	result := &executionPayloadJSON{}
	if err := s.client.CallContext(ctx, result, GetPayloadMethod, payloadID); err != nil {
		return nil, errors.Wrap(err, "could not get payload")
	}
	return unmarshalPayload(result), nil
}

// StatusError maps a PayloadStatus to the package's sentinel errors, nil
// for VALID, so callers can switch on engine verdicts without string
// comparison.
func StatusError(status *PayloadStatus) error {
	switch status.Status {
	case StatusValid:
		return nil
	case StatusInvalid:
		return ErrInvalidPayloadStatus
	case StatusInvalidBlockHash:
		return ErrInvalidBlockHashPayloadStatus
	case StatusInvalidTerminalBlock:
		return ErrInvalidTerminalBlockStatus
	case StatusSyncing, StatusAccepted:
		return ErrAcceptedSyncingPayloadStatus
	default:
		return errors.Wrapf(ErrUnknownPayloadStatus, "%q", status.Status)
	}
}

func syntheticSyncing() *PayloadStatus {
	return &PayloadStatus{Status: StatusSyncing}
}

// TerminalTotalDifficulty parses the configured TTD into a uint256,
// surfacing the overflow case the string-typed config cannot rule out.
func TerminalTotalDifficulty() (*uint256.Int, error) {
	ttd := new(big.Int)
	if _, ok := ttd.SetString(params.BeaconConfig().TerminalTotalDifficulty, 10); !ok {
		return nil, errors.New("could not parse terminal total difficulty")
	}
	out, overflows := uint256.FromBig(ttd)
	if overflows {
		return nil, errors.New("terminal total difficulty overflows uint256")
	}
	return out, nil
}
